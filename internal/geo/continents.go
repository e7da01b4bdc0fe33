package geo

// Continent names produced by the resolver.
const (
	America    = "America"
	Africa     = "Africa"
	Asia       = "Asia"
	Europe     = "Europe"
	Oceania    = "Oceania"
	Antarctica = "Antarctica"
)

// Coarse continent outlines (lat, lon). They are deliberately rough: borders
// between Europe, Asia and Africa follow the Bosporus, the Suez isthmus and the
// Red Sea, and the Bering strait splits America and Asia at the antimeridian.
var (
	northAmericaLats = []float64{90, 90, 78.13, 57.5, 15, 15, 1.25, 1.25, 51, 60, 60}
	northAmericaLons = []float64{-168.75, -10, -10, -37.5, -30, -75, -82.5, -105, -180, -180, -168.75}

	// Aleutian islands west of the antimeridian.
	northAmerica2Lats = []float64{51, 51, 60}
	northAmerica2Lons = []float64{166.6, 180, 180}

	southAmericaLats = []float64{1.25, 1.25, 15, 15, -60, -60}
	southAmericaLons = []float64{-105, -82.5, -75, -30, -30, -105}

	africaLats = []float64{15, 28.25, 35.42, 38, 33, 31.74, 29.54, 27.78, 11.3, 12.5, -60, -60}
	africaLons = []float64{-30, -13, -10, 10, 27.5, 34.58, 34.92, 34.46, 44.3, 52, 75, -30}

	asiaLats = []float64{90, 42.5, 42.5, 40.79, 41, 40.55, 40.4, 40.05, 39.17, 35.46, 33, 31.74, 29.54, 27.78, 11.3, 12.5, -60, -60, -31.88, -11.88, -10.27, 33.13, 51, 60, 90}
	asiaLons = []float64{77.5, 48.8, 30, 28.81, 29, 27.31, 26.75, 26.36, 25.19, 27.91, 27.5, 34.58, 34.92, 34.46, 44.3, 52, 75, 110, 110, 110, 140, 140, 166.6, 180, 180}

	// Chukotka east of the antimeridian.
	asia2Lats = []float64{90, 90, 60, 60}
	asia2Lons = []float64{-180, -168.75, -168.75, -180}

	europeLats = []float64{90, 90, 42.5, 42.5, 40.79, 41, 40.55, 40.40, 40.05, 39.17, 35.46, 33, 38, 35.42, 28.25, 15, 57.5, 78.13}
	europeLons = []float64{-10, 77.5, 48.8, 30, 28.81, 29, 27.31, 26.75, 26.36, 25.19, 27.91, 27.5, 10, -10, -13, -30, -37.5, -10}

	oceaniaLats = []float64{-11.88, -10.27, -10, -30, -52.5, -31.88}
	oceaniaLons = []float64{110, 140, 145, 161.25, 142.5, 110}

	antarcticaLats = []float64{-60, -60, -90, -90}
	antarcticaLons = []float64{-180, 180, 180, -180}
)

// DefaultRegions returns the continent table in classification priority order.
func DefaultRegions() []Region {
	return []Region{
		{Name: America, Polygons: []Polygon{
			mustPolygon(northAmericaLats, northAmericaLons),
			mustPolygon(northAmerica2Lats, northAmerica2Lons),
			mustPolygon(southAmericaLats, southAmericaLons),
		}},
		{Name: Africa, Polygons: []Polygon{mustPolygon(africaLats, africaLons)}},
		{Name: Asia, Polygons: []Polygon{
			mustPolygon(asiaLats, asiaLons),
			mustPolygon(asia2Lats, asia2Lons),
		}},
		{Name: Europe, Polygons: []Polygon{mustPolygon(europeLats, europeLons)}},
		{Name: Oceania, Polygons: []Polygon{mustPolygon(oceaniaLats, oceaniaLons)}},
		{Name: Antarctica, Polygons: []Polygon{mustPolygon(antarcticaLats, antarcticaLons)}},
	}
}
