package orders

import (
	"math"
	"strconv"
	"strings"

	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
)

// DeriveSamples groups codes into one sample per tube type, in order of the first
// code needing each tube. Sample state (collection, accession, rejection) carries
// over from prior for tube types that persist, and tests already on the order keep
// their status and result. New tube types start awaiting collection.
//
// Codes are normalized and de-duplicated. Unknown codes are rejected, as are
// inactive codes that were not already on the order.
func DeriveSamples(catalog map[string]models.TestCatalogItem, codes []string, prior []models.OrderSample) ([]models.OrderSample, error) {
	priorSample := map[string]models.OrderSample{}
	priorTest := map[string]models.OrderTest{}
	for _, s := range prior {
		priorSample[s.TubeType] = s
		for _, t := range s.Tests {
			priorTest[t.Code] = t
		}
	}

	seen := map[string]bool{}
	var tubes []string
	byTube := map[string][]models.TestCatalogItem{}
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		item, ok := catalog[code]
		if !ok {
			return nil, apierror.Invalid("unknown test code %s", code)
		}
		if _, kept := priorTest[code]; !item.Active && !kept {
			return nil, apierror.Invalid("test %s is not orderable", code)
		}
		if _, ok := byTube[item.TubeType]; !ok {
			tubes = append(tubes, item.TubeType)
		}
		byTube[item.TubeType] = append(byTube[item.TubeType], item)
	}
	if len(tubes) == 0 {
		return nil, apierror.Invalid("at least one test code is required")
	}

	out := make([]models.OrderSample, 0, len(tubes))
	for _, tube := range tubes {
		items := byTube[tube]
		sample, existed := priorSample[tube]
		if !existed {
			sample = models.OrderSample{
				TubeType:     tube,
				SpecimenType: items[0].SpecimenType,
				Status:       models.SampleAwaitingCollection,
			}
		}
		sample.Tests = make([]models.OrderTest, 0, len(items))
		for _, it := range items {
			if t, ok := priorTest[it.Code]; ok {
				sample.Tests = append(sample.Tests, t)
				continue
			}
			sample.Tests = append(sample.Tests, models.OrderTest{Code: it.Code, Name: it.Name, Status: models.TestPending})
		}
		out = append(out, sample)
	}
	return out, nil
}

// DroppedResults lists codes with results that exist in prior but not in next.
func DroppedResults(prior, next []models.OrderSample) []string {
	keep := map[string]bool{}
	for _, s := range next {
		for _, t := range s.Tests {
			keep[t.Code] = true
		}
	}
	var dropped []string
	for _, s := range prior {
		for _, t := range s.Tests {
			if t.Status != models.TestPending && !keep[t.Code] {
				dropped = append(dropped, t.Code)
			}
		}
	}
	return dropped
}

// DeriveStatus computes the order status from its samples and tests:
// completed when every test is verified, in_progress once a sample is received
// or any result exists, collected once any sample is collected, else pending.
func DeriveStatus(o *models.Order) string {
	if o.Status == models.OrderCancelled {
		return models.OrderCancelled
	}
	total, verified, resulted := 0, 0, 0
	collected, received := false, false
	for _, s := range o.Samples {
		switch s.Status {
		case models.SampleCollected:
			collected = true
		case models.SampleReceived:
			received = true
		}
		for _, t := range s.Tests {
			total++
			switch t.Status {
			case models.TestVerified:
				verified++
				resulted++
			case models.TestResulted:
				resulted++
			}
		}
	}
	switch {
	case total > 0 && verified == total:
		return models.OrderCompleted
	case received || resulted > 0:
		return models.OrderInProgress
	case collected:
		return models.OrderCollected
	}
	return models.OrderPending
}

// Flag parses value and compares it with rr. Non-numeric values, and numeric
// values without a range, get no flag.
func Flag(value string, rr models.ReferenceRange) (*float64, string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ""
	}
	switch {
	case rr.Low != nil && v < *rr.Low:
		return &v, models.FlagLow
	case rr.High != nil && v > *rr.High:
		return &v, models.FlagHigh
	case rr.Low != nil || rr.High != nil:
		return &v, models.FlagNormal
	}
	return &v, ""
}
