package models

// ServiceCategory selects the assistant persona and the expert rate tier.
type ServiceCategory string

const (
	CategoryDesign      ServiceCategory = "Design"
	CategoryVideo       ServiceCategory = "Video"
	CategoryProgramming ServiceCategory = "Programming"
	CategoryText        ServiceCategory = "Text"
	CategoryAnalysis    ServiceCategory = "Analysis"
	CategoryWebData     ServiceCategory = "Web & Data"
	CategoryModeling3D  ServiceCategory = "3D Modeling"
)

// Categories lists every supported category.
var Categories = []ServiceCategory{
	CategoryDesign,
	CategoryVideo,
	CategoryProgramming,
	CategoryText,
	CategoryAnalysis,
	CategoryWebData,
	CategoryModeling3D,
}

// ServiceRates maps a category to its expert hourly rate in USD.
var ServiceRates = map[ServiceCategory]float64{
	CategoryProgramming: 50,
	CategoryModeling3D:  50,
	CategoryWebData:     45,
	CategoryAnalysis:    45,
	CategoryVideo:       40,
	CategoryDesign:      30,
	CategoryText:        15,
}

// RateFor returns the hourly rate for a category. Unknown categories bill
// at the Text tier.
func RateFor(category ServiceCategory) float64 {
	if rate, ok := ServiceRates[category]; ok {
		return rate
	}
	return ServiceRates[CategoryText]
}

// Valid reports whether the category is one of the defined tiers.
func (c ServiceCategory) Valid() bool {
	_, ok := ServiceRates[c]
	return ok
}
