// Package attribution holds the counterfactual model and derived event
// statistics for GMST-conditioned GEV attribution.
//
// A ShiftFitModel carries the regression slope of block maxima on the
// covariate and the GEV fitted to the detrended residuals. A ClimateState
// fixes the covariate at a reference year; Parameterize shifts only the GEV
// location by slope*covariate, so shape and scale are shared across states.
//
// Derived statistics (survival probability, return period, probability
// ratio, intensity change, return levels) are computed by Calculator from
// one parameter draw at a time. Confidence intervals come from evaluating the
// same calculation on every bootstrap replicate and taking percentiles of the
// resulting statistic, so both climate states in a ratio or difference always
// come from the same resample.
package attribution
