package attribution

import (
	"encoding/json"
	"fmt"
	"math"
)

// jsonFloat writes non-finite values as the strings "+Inf", "-Inf" and "NaN",
// which encoding/json otherwise rejects.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*f = jsonFloat(math.NaN())
		case "+Inf", "Inf":
			*f = jsonFloat(math.Inf(1))
		case "-Inf":
			*f = jsonFloat(math.Inf(-1))
		default:
			return fmt.Errorf("invalid number %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type estimateJSON struct {
	Value    jsonFloat `json:"value"`
	Interval *Interval `json:"interval,omitempty"`
	Flags    []Flag    `json:"flags,omitempty"`
}

func (e Estimate) MarshalJSON() ([]byte, error) {
	return json.Marshal(estimateJSON{Value: jsonFloat(e.Value), Interval: e.Interval, Flags: e.Flags})
}

func (e *Estimate) UnmarshalJSON(data []byte) error {
	var raw estimateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Estimate{Value: float64(raw.Value), Interval: raw.Interval, Flags: raw.Flags}
	return nil
}

type intervalJSON struct {
	Low   jsonFloat `json:"low"`
	High  jsonFloat `json:"high"`
	Level float64   `json:"level"`
	Used  int       `json:"used"`
}

func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(intervalJSON{Low: jsonFloat(iv.Low), High: jsonFloat(iv.High), Level: iv.Level, Used: iv.Used})
}

func (iv *Interval) UnmarshalJSON(data []byte) error {
	var raw intervalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*iv = Interval{Low: float64(raw.Low), High: float64(raw.High), Level: raw.Level, Used: raw.Used}
	return nil
}
