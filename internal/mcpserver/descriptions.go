package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and what comes back.

func describeNormalize() string {
	return `Converts one raw environmental reading into a 0-100 score using the metric catalog.

USE WHEN:
- Explaining why a metric scored the way it did
- Checking a single reading before assembling a full site bundle
- Comparing readings in different units on one scale

INTERPRETING RESULTS:
- 100 is the best end of the metric's valid range, 0 the worst
- Polarity matters: for aod, aqi, lst, forest_loss, human_modification lower is better
- Readings outside the valid range are clamped before scoring
- A null reading always scores 0
- known=false means the id is not in the catalog and a generic 0-100 higher-is-better range was used

METRICS RETURNED:
- score, raw and clamped value, catalog entry (range, unit, polarity, criticality)
- in_optimal_range for metrics that define one`
}

func describeSupplement() string {
	return `Fills null metric values from an external weather and air quality bundle.

USE WHEN:
- A site bundle has gaps for aqi, uv_index, cloud_fraction, soil_moisture or lst
- You have an Open-Meteo style response and want it merged into the metrics

INTERPRETING RESULTS:
- Only metrics that are present with a null value are filled; measured values are never touched
- Filled metrics carry quality "moderate" and source "external"
- soil_moisture is the mean of the available depth bands (0-1cm to 9-27cm), else the soil summary
- uv_index uses today's daily maximum, else the current air quality reading
- cloud_fraction is current cloud cover divided by 100
- aqi and uv_index descriptions carry their category, e.g. "UV index (high)"
- weather.available=false disables every weather-sourced fill
- Missing, malformed or wrongly typed external fields are skipped silently

METRICS RETURNED:
- pillars: the supplemented bundle in the original metric order
- filled: each filled metric with pillar, value, unit and category`
}

func describeSeries() string {
	return `Builds ordered (label, score) series per pillar for radar or bar charts.

USE WHEN:
- Preparing chart data for a site
- Showing which metrics drag a pillar down
- Checking how much supplementation changes a site (compare=true with external)

INTERPRETING RESULTS:
- One point per metric, in the bundle's metric order
- all_axes=true uses catalog order and adds every catalog metric, so every site shows the same axes
- Unmeasured metrics appear with score 0 and measured=false, so axes stay stable across sites
- Labels are humanized ids; use the metric field for lookups

METRICS RETURNED:
- pillar, series of {label, metric, score, measured}
- with compare=true: pillar, comparison of {labels, metrics, a (before), b (after supplementation)}`
}

func describeAggregate() string {
	return `Combines pillar scores into a composite Planetary Health Index with a weight profile.

USE WHEN:
- You already have pillar scores (0-100) and need the overall index
- Comparing how different weight profiles change the composite

INTERPRETING RESULTS:
- score is the weighted sum over pillars present in both scores and weights
- Weights are not renormalized; weight_sum shows how far they are from 1
- Bands: >=80 Excellent, >=60 Good, >=40 Moderate, >=20 Poor, below Critical
- esv_multiplier adjusts ecosystem service value: 0 at 50, positive above, negative below
- excluded lists scored pillars that have no weight

METRICS RETURNED:
- profile, score, interpretation, color, weights, weight_sum, esv_multiplier, excluded`
}

func describeScoreSite() string {
	return `Runs the full pipeline for one site: validation, supplementation, series, composite and data quality.

USE WHEN:
- Producing a complete assessment for a site
- Checking whether a bundle is complete enough to trust

INTERPRETING RESULTS:
- The composite is only present when pillar_scores are given
- DQS is a criticality-weighted availability score over the whole catalog
- Confidence: >=85 high, >=70 investment_grade, >=50 acceptable, else low
- missing_critical lists critical metrics with no usable value; fill these first
- input_digest identifies the exact input; run_id is unique per call

METRICS RETURNED:
- run_id, input_digest, generated_at, site, pillars, filled, series, composite, quality`
}

func describeCatalog() string {
	return `Lists the metric catalog: pillars, metric ranges, units, polarity and criticality.

USE WHEN:
- Finding the valid metric ids for a pillar
- Checking units before sending readings
- Understanding which metrics are critical for data quality

INTERPRETING RESULTS:
- Pillars are A atmospheric, B biodiversity, C carbon, D degradation, E ecosystem
- criticality weights the DQS: critical 1.0, important 0.7, supporting 0.4, auxiliary 0.2
- optimal_min/optimal_max mark the healthy band used for quality assessment

METRICS RETURNED:
- pillars with their ordered metrics and core metrics
- metrics with min, max, higher_is_better, unit, optimal range, criticality`
}
