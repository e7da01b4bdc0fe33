package geo

import "strings"

// countryContinents maps ISO 3166-1 alpha-2 codes to continent names.
// Transcontinental countries are assigned where most of their population lives
// (RU to Europe, TR and KZ to Asia, EG to Africa).
var countryContinents = map[string]string{
	// Africa
	"AO": Africa, "BF": Africa, "BI": Africa, "BJ": Africa, "BW": Africa, "CD": Africa,
	"CF": Africa, "CG": Africa, "CI": Africa, "CM": Africa, "CV": Africa, "DJ": Africa,
	"DZ": Africa, "EG": Africa, "EH": Africa, "ER": Africa, "ET": Africa, "GA": Africa,
	"GH": Africa, "GM": Africa, "GN": Africa, "GQ": Africa, "GW": Africa, "KE": Africa,
	"KM": Africa, "LR": Africa, "LS": Africa, "LY": Africa, "MA": Africa, "MG": Africa,
	"ML": Africa, "MR": Africa, "MU": Africa, "MW": Africa, "MZ": Africa, "NA": Africa,
	"NE": Africa, "NG": Africa, "RE": Africa, "RW": Africa, "SC": Africa, "SD": Africa,
	"SH": Africa, "SL": Africa, "SN": Africa, "SO": Africa, "SS": Africa, "ST": Africa,
	"SZ": Africa, "TD": Africa, "TG": Africa, "TN": Africa, "TZ": Africa, "UG": Africa,
	"YT": Africa, "ZA": Africa, "ZM": Africa, "ZW": Africa,
	// America
	"AG": America, "AI": America, "AR": America, "AW": America, "BB": America, "BL": America,
	"BM": America, "BO": America, "BQ": America, "BR": America, "BS": America, "BZ": America,
	"CA": America, "CL": America, "CO": America, "CR": America, "CU": America, "CW": America,
	"DM": America, "DO": America, "EC": America, "FK": America, "GD": America, "GF": America,
	"GL": America, "GP": America, "GT": America, "GY": America, "HN": America, "HT": America,
	"JM": America, "KN": America, "KY": America, "LC": America, "MF": America, "MQ": America,
	"MS": America, "MX": America, "NI": America, "PA": America, "PE": America, "PM": America,
	"PR": America, "PY": America, "SR": America, "SV": America, "SX": America, "TC": America,
	"TT": America, "US": America, "UY": America, "VC": America, "VE": America, "VG": America,
	"VI": America,
	// Antarctica
	"AQ": Antarctica, "BV": Antarctica, "GS": Antarctica, "HM": Antarctica, "TF": Antarctica,
	// Asia
	"AE": Asia, "AF": Asia, "AM": Asia, "AZ": Asia, "BD": Asia, "BH": Asia, "BN": Asia,
	"BT": Asia, "CC": Asia, "CN": Asia, "CX": Asia, "GE": Asia, "HK": Asia, "ID": Asia,
	"IL": Asia, "IN": Asia, "IO": Asia, "IQ": Asia, "IR": Asia, "JO": Asia, "JP": Asia,
	"KG": Asia, "KH": Asia, "KP": Asia, "KR": Asia, "KW": Asia, "KZ": Asia, "LA": Asia,
	"LB": Asia, "LK": Asia, "MM": Asia, "MN": Asia, "MO": Asia, "MV": Asia, "MY": Asia,
	"NP": Asia, "OM": Asia, "PH": Asia, "PK": Asia, "PS": Asia, "QA": Asia, "SA": Asia,
	"SG": Asia, "SY": Asia, "TH": Asia, "TJ": Asia, "TL": Asia, "TM": Asia, "TR": Asia,
	"TW": Asia, "UZ": Asia, "VN": Asia, "YE": Asia,
	// Europe
	"AD": Europe, "AL": Europe, "AT": Europe, "AX": Europe, "BA": Europe, "BE": Europe,
	"BG": Europe, "BY": Europe, "CH": Europe, "CY": Europe, "CZ": Europe, "DE": Europe,
	"DK": Europe, "EE": Europe, "ES": Europe, "FI": Europe, "FO": Europe, "FR": Europe,
	"GB": Europe, "GG": Europe, "GI": Europe, "GR": Europe, "HR": Europe, "HU": Europe,
	"IE": Europe, "IM": Europe, "IS": Europe, "IT": Europe, "JE": Europe, "LI": Europe,
	"LT": Europe, "LU": Europe, "LV": Europe, "MC": Europe, "MD": Europe, "ME": Europe,
	"MK": Europe, "MT": Europe, "NL": Europe, "NO": Europe, "PL": Europe, "PT": Europe,
	"RO": Europe, "RS": Europe, "RU": Europe, "SE": Europe, "SI": Europe, "SJ": Europe,
	"SK": Europe, "SM": Europe, "UA": Europe, "VA": Europe, "XK": Europe,
	// Oceania
	"AS": Oceania, "AU": Oceania, "CK": Oceania, "FJ": Oceania, "FM": Oceania, "GU": Oceania,
	"KI": Oceania, "MH": Oceania, "MP": Oceania, "NC": Oceania, "NF": Oceania, "NR": Oceania,
	"NU": Oceania, "NZ": Oceania, "PF": Oceania, "PG": Oceania, "PN": Oceania, "PW": Oceania,
	"SB": Oceania, "TK": Oceania, "TO": Oceania, "TV": Oceania, "UM": Oceania, "VU": Oceania,
	"WF": Oceania, "WS": Oceania,
}

// ContinentForCountry maps a country code to its continent. Codes are
// case-insensitive; unknown codes report false.
func ContinentForCountry(code string) (string, bool) {
	continent, ok := countryContinents[strings.ToUpper(strings.TrimSpace(code))]
	return continent, ok
}
