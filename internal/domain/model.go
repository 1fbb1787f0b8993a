package domain

import "time"

// Category classifies an activity into one of the tracked emission areas.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryWaste     Category = "waste"
	CategoryDiet      Category = "diet"
	CategoryEnergy    Category = "energy"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{CategoryTransport, CategoryWaste, CategoryDiet, CategoryEnergy}

// ParseCategory validates a raw category string.
func ParseCategory(raw string) (Category, bool) {
	switch Category(raw) {
	case CategoryTransport, CategoryWaste, CategoryDiet, CategoryEnergy:
		return Category(raw), true
	}
	return "", false
}

// ActivityType identifies a concrete activity within a category.
type ActivityType string

const (
	TransportCar    ActivityType = "car"
	TransportBus    ActivityType = "bus"
	TransportTrain  ActivityType = "train"
	TransportFlight ActivityType = "flight"
	TransportBike   ActivityType = "bike"
	TransportWalk   ActivityType = "walk"

	WasteGeneral       ActivityType = "general"
	WasteRecyclable    ActivityType = "recyclable"
	WasteBiodegradable ActivityType = "biodegradable"
	WasteCompost       ActivityType = "compost"

	DietMeat       ActivityType = "meat"
	DietFish       ActivityType = "fish"
	DietVegetarian ActivityType = "vegetarian"
	DietVegan      ActivityType = "vegan"

	EnergyFossil    ActivityType = "fossil"
	EnergyRenewable ActivityType = "renewable"
	EnergyMixed     ActivityType = "mixed"
	EnergySaved     ActivityType = "saved"
)

// Profile is the per-user accounting record. TotalCarbonSaved only ever grows.
type Profile struct {
	UserID           string
	TotalCarbonSaved float64
	Level            int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Activity is one logged entry in the append-only activity log. Immutable once created.
type Activity struct {
	ID           string
	UserID       string
	Category     Category
	ActivityType ActivityType
	Quantity     float64
	CarbonImpact float64
	CreatedAt    time.Time
}

// Achievement is static reference data describing an unlockable threshold.
type Achievement struct {
	ID             string
	Name           string
	Description    string
	CarbonRequired float64
}

// UserAchievement marks that a user crossed an achievement threshold. Created once,
// never mutated.
type UserAchievement struct {
	UserID        string
	AchievementID string
	UnlockedAt    time.Time
}

// SummaryStats aggregates the activity log for the dashboard.
type SummaryStats struct {
	TotalActivities  int
	CarbonByCategory map[Category]float64
	RecentActivities []Activity
}

// Summary is the dashboard view model assembled by BuildSummary.
type Summary struct {
	Profile           Profile
	Stats             SummaryStats
	AchievementsCount int
	NextAchievement   *Achievement
}
