package models

import "time"

// Commodity is the canonical identifier of a tracked staple
type Commodity string

const (
	CommodityRice         Commodity = "RICE"
	CommoditySugar        Commodity = "SUGAR"
	CommodityCookingOil   Commodity = "COOKING_OIL"
	CommodityShallot      Commodity = "SHALLOT"
	CommodityGarlic       Commodity = "GARLIC"
	CommodityRedChili     Commodity = "RED_CHILI"
	CommodityBirdEyeChili Commodity = "BIRD_EYE_CHILI"
	CommodityBeef         Commodity = "BEEF"
	CommodityEgg          Commodity = "EGG"
	CommodityChicken      Commodity = "CHICKEN"
	CommodityWheatFlour   Commodity = "WHEAT_FLOUR"
	CommoditySoybean      Commodity = "SOYBEAN"
	CommodityCorn         Commodity = "CORN"
	CommoditySalt         Commodity = "SALT"
	CommodityMilk         Commodity = "MILK"
)

// AllCommodities lists every canonical commodity in display order
var AllCommodities = []Commodity{
	CommodityRice,
	CommoditySugar,
	CommodityCookingOil,
	CommodityShallot,
	CommodityGarlic,
	CommodityRedChili,
	CommodityBirdEyeChili,
	CommodityBeef,
	CommodityEgg,
	CommodityChicken,
	CommodityWheatFlour,
	CommoditySoybean,
	CommodityCorn,
	CommoditySalt,
	CommodityMilk,
}

// IsValid reports whether c is one of the canonical commodities
func (c Commodity) IsValid() bool {
	for _, known := range AllCommodities {
		if c == known {
			return true
		}
	}
	return false
}

// Region is the canonical identifier of a province, or the synthetic NATIONAL region
type Region string

// RegionNational holds derived national averages. It is never ingested directly.
const RegionNational Region = "NATIONAL"

const (
	RegionAceh                Region = "ACEH"
	RegionSumateraUtara       Region = "SUMATERA_UTARA"
	RegionSumateraBarat       Region = "SUMATERA_BARAT"
	RegionKepulauanRiau       Region = "KEPULAUAN_RIAU"
	RegionRiau                Region = "RIAU"
	RegionJambi               Region = "JAMBI"
	RegionSumateraSelatan     Region = "SUMATERA_SELATAN"
	RegionBangkaBelitung      Region = "BANGKA_BELITUNG"
	RegionBengkulu            Region = "BENGKULU"
	RegionLampung             Region = "LAMPUNG"
	RegionDKIJakarta          Region = "DKI_JAKARTA"
	RegionJawaBarat           Region = "JAWA_BARAT"
	RegionBanten              Region = "BANTEN"
	RegionJawaTengah          Region = "JAWA_TENGAH"
	RegionDIYogyakarta        Region = "DI_YOGYAKARTA"
	RegionJawaTimur           Region = "JAWA_TIMUR"
	RegionBali                Region = "BALI"
	RegionNusaTenggaraBarat   Region = "NUSA_TENGGARA_BARAT"
	RegionNusaTenggaraTimur   Region = "NUSA_TENGGARA_TIMUR"
	RegionKalimantanBarat     Region = "KALIMANTAN_BARAT"
	RegionKalimantanTengah    Region = "KALIMANTAN_TENGAH"
	RegionKalimantanSelatan   Region = "KALIMANTAN_SELATAN"
	RegionKalimantanTimur     Region = "KALIMANTAN_TIMUR"
	RegionKalimantanUtara     Region = "KALIMANTAN_UTARA"
	RegionSulawesiUtara       Region = "SULAWESI_UTARA"
	RegionSulawesiTengah      Region = "SULAWESI_TENGAH"
	RegionSulawesiSelatan     Region = "SULAWESI_SELATAN"
	RegionSulawesiTenggara    Region = "SULAWESI_TENGGARA"
	RegionGorontalo           Region = "GORONTALO"
	RegionSulawesiBarat       Region = "SULAWESI_BARAT"
	RegionMalukuUtara         Region = "MALUKU_UTARA"
	RegionMaluku              Region = "MALUKU"
	RegionPapuaBarat          Region = "PAPUA_BARAT"
	RegionPapua               Region = "PAPUA"
)

// AllRegions lists the provinces plus NATIONAL
var AllRegions = []Region{
	RegionAceh, RegionSumateraUtara, RegionSumateraBarat, RegionKepulauanRiau,
	RegionRiau, RegionJambi, RegionSumateraSelatan, RegionBangkaBelitung,
	RegionBengkulu, RegionLampung, RegionDKIJakarta, RegionJawaBarat,
	RegionBanten, RegionJawaTengah, RegionDIYogyakarta, RegionJawaTimur,
	RegionBali, RegionNusaTenggaraBarat, RegionNusaTenggaraTimur,
	RegionKalimantanBarat, RegionKalimantanTengah, RegionKalimantanSelatan,
	RegionKalimantanTimur, RegionKalimantanUtara, RegionSulawesiUtara,
	RegionSulawesiTengah, RegionSulawesiSelatan, RegionSulawesiTenggara,
	RegionGorontalo, RegionSulawesiBarat, RegionMalukuUtara, RegionMaluku,
	RegionPapuaBarat, RegionPapua,
	RegionNational,
}

// IsValid reports whether r is a known region (NATIONAL included)
func (r Region) IsValid() bool {
	for _, known := range AllRegions {
		if r == known {
			return true
		}
	}
	return false
}

// IsNational reports whether r is the synthetic national region
func (r Region) IsNational() bool {
	return r == RegionNational
}

// PriceObservation is one raw row produced by a source adapter.
// Labels are free text; nothing here is canonical yet.
type PriceObservation struct {
	CommodityLabel string
	RegionLabel    string
	Price          int64
	Unit           string
	ObservedAt     time.Time
	SourceRef      string
}

// NormalizedObservation is an observation whose labels resolved to canonical ids
type NormalizedObservation struct {
	Commodity  Commodity
	Region     Region
	Price      int64
	Unit       string
	ObservedAt time.Time
	SourceRef  string
}

// DayOf returns the calendar day of t in loc, as midnight UTC.
// Every price_date column stores this form so equality lookups are stable across drivers.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
