package main

import (
	"context"
	"errors"

	"github.com/openlis/lis-api/internal/catalog"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
)

type catalogCreator interface {
	CreateTest(ctx context.Context, t *models.TestCatalogItem) (*models.TestCatalogItem, error)
}

// seedCatalog creates each item, counting codes that already exist as skipped.
func seedCatalog(ctx context.Context, svc catalogCreator, items []models.TestCatalogItem) (created, skipped int, err error) {
	for i := range items {
		it := items[i]
		it.Active = true
		if _, err := svc.CreateTest(ctx, &it); err != nil {
			if errors.Is(err, apierror.ErrConflict) {
				skipped++
				continue
			}
			return created, skipped, err
		}
		created++
	}
	return created, skipped, nil
}

func ref(low, high float64) models.ReferenceRange {
	return models.ReferenceRange{Low: &low, High: &high}
}

// defaultCatalog is a starter chemistry and hematology panel.
func defaultCatalog() []models.TestCatalogItem {
	return []models.TestCatalogItem{
		{Code: "GLU", Name: "Glucose, fasting", Department: "chemistry", SpecimenType: "blood", TubeType: "gray", Units: "mg/dL", ReferenceRange: ref(70, 99), TurnaroundHours: 4, Price: 8},
		{Code: "NA", Name: "Sodium", Department: "chemistry", SpecimenType: "blood", TubeType: "gold", Units: "mmol/L", ReferenceRange: ref(135, 145), TurnaroundHours: 4, Price: 6},
		{Code: "K", Name: "Potassium", Department: "chemistry", SpecimenType: "blood", TubeType: "gold", Units: "mmol/L", ReferenceRange: ref(3.5, 5.1), TurnaroundHours: 4, Price: 6},
		{Code: "CREA", Name: "Creatinine", Department: "chemistry", SpecimenType: "blood", TubeType: "gold", Units: "mg/dL", ReferenceRange: ref(0.6, 1.3), TurnaroundHours: 4, Price: 7},
		{Code: "ALT", Name: "Alanine aminotransferase", Department: "chemistry", SpecimenType: "blood", TubeType: "gold", Units: "U/L", ReferenceRange: ref(7, 56), TurnaroundHours: 6, Price: 9},
		{Code: "HBA1C", Name: "Hemoglobin A1c", Department: "chemistry", SpecimenType: "blood", TubeType: "lavender", Units: "%", ReferenceRange: ref(4, 5.6), TurnaroundHours: 24, Price: 15},
		{Code: "WBC", Name: "White blood cell count", Department: "hematology", SpecimenType: "blood", TubeType: "lavender", Units: "10^3/uL", ReferenceRange: ref(4.5, 11), TurnaroundHours: 2, Price: 5},
		{Code: "HGB", Name: "Hemoglobin", Department: "hematology", SpecimenType: "blood", TubeType: "lavender", Units: "g/dL", ReferenceRange: ref(12, 17.5), TurnaroundHours: 2, Price: 5},
		{Code: "PLT", Name: "Platelet count", Department: "hematology", SpecimenType: "blood", TubeType: "lavender", Units: "10^3/uL", ReferenceRange: ref(150, 450), TurnaroundHours: 2, Price: 5},
		{Code: "PT", Name: "Prothrombin time", Department: "coagulation", SpecimenType: "blood", TubeType: "light blue", Units: "s", ReferenceRange: ref(11, 13.5), TurnaroundHours: 2, Price: 10},
		{Code: "UA", Name: "Urinalysis", Department: "urinalysis", SpecimenType: "urine", TubeType: "urine cup", ReferenceRange: models.ReferenceRange{Text: "negative"}, TurnaroundHours: 2, Price: 6},
	}
}

var _ catalogCreator = (*catalog.Service)(nil)
