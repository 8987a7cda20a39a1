package models

type Category string

const (
	CategoryEarthquake Category = "earthquake"
	CategoryFlood      Category = "flood"
	CategoryFire       Category = "fire"
	CategoryLandslide  Category = "landslide"
	CategoryCyclone    Category = "cyclone"
	CategoryTsunami    Category = "tsunami"
	CategorySOS        Category = "sos"
	CategoryOther      Category = "other"
)

// CategoryInfo - то, что отличает одну категорию от другой.
// Схема и обработчики у всех категорий общие.
type CategoryInfo struct {
	Title   string
	Message string
	// GDACSCode - код типа события в ленте GDACS, пусто если лента такого не шлет
	GDACSCode string
}

var Categories = map[Category]CategoryInfo{
	CategoryEarthquake: {
		Title:     "Earthquake alert",
		Message:   "An earthquake has been reported in your region. Stay away from damaged buildings.",
		GDACSCode: "EQ",
	},
	CategoryFlood: {
		Title:     "Flood alert",
		Message:   "A flood has been reported in your region. Move to higher ground if you are nearby.",
		GDACSCode: "FL",
	},
	CategoryFire: {
		Title:     "Fire alert",
		Message:   "A fire has been reported in your region. Avoid the area and follow responder instructions.",
		GDACSCode: "WF",
	},
	CategoryLandslide: {
		Title:   "Landslide alert",
		Message: "A landslide has been reported in your region. Avoid slopes and nearby roads.",
	},
	CategoryCyclone: {
		Title:     "Cyclone alert",
		Message:   "A cyclone has been reported in your region. Stay indoors and secure loose objects.",
		GDACSCode: "TC",
	},
	CategoryTsunami: {
		Title:     "Tsunami alert",
		Message:   "A tsunami has been reported in your region. Move inland and to higher ground immediately.",
		GDACSCode: "TS",
	},
	CategorySOS: {
		Title:   "SOS request",
		Message: "Someone near you has requested emergency help.",
	},
	CategoryOther: {
		Title:   "Incident alert",
		Message: "A new incident has been reported in your region.",
	},
}

// CategoryList в стабильном порядке для документации и валидатора
var CategoryList = []Category{
	CategoryEarthquake, CategoryFlood, CategoryFire, CategoryLandslide,
	CategoryCyclone, CategoryTsunami, CategorySOS, CategoryOther,
}

func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	_, ok := Categories[c]
	return c, ok
}

func (c Category) IsValid() bool {
	_, ok := Categories[c]
	return ok
}

func (c Category) Info() CategoryInfo {
	if info, ok := Categories[c]; ok {
		return info
	}
	return Categories[CategoryOther]
}

// EventName - имя realtime события о новых отчетах этой категории
func (c Category) EventName() string {
	return "new_" + string(c)
}

// CategoryFromGDACS - категория по типу события ленты, неизвестные коды попадают в other
func CategoryFromGDACS(code string) Category {
	for _, c := range CategoryList {
		if info := Categories[c]; info.GDACSCode != "" && info.GDACSCode == code {
			return c
		}
	}
	return CategoryOther
}
