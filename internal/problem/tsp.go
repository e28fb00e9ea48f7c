package problem

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/lahc"
)

// earthRadiusMiles is used for great-circle distances.
const earthRadiusMiles = 3963

// City is a named point given in degrees.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

// USCities are the twenty largest US cities. Longitudes are degrees west.
var USCities = []City{
	{"New York City", 40.72, 74.00},
	{"Los Angeles", 34.05, 118.25},
	{"Chicago", 41.88, 87.63},
	{"Houston", 29.77, 95.38},
	{"Phoenix", 33.45, 112.07},
	{"Philadelphia", 39.95, 75.17},
	{"San Antonio", 29.53, 98.47},
	{"Dallas", 32.78, 96.80},
	{"San Diego", 32.78, 117.15},
	{"San Jose", 37.30, 121.87},
	{"Detroit", 42.33, 83.05},
	{"San Francisco", 37.78, 122.42},
	{"Jacksonville", 30.32, 81.70},
	{"Indianapolis", 39.78, 86.15},
	{"Austin", 30.27, 97.77},
	{"Columbus", 39.98, 82.98},
	{"Fort Worth", 32.75, 97.33},
	{"Charlotte", 35.23, 80.85},
	{"Memphis", 35.12, 89.97},
	{"Baltimore", 39.28, 76.62},
}

// Distance returns the great-circle distance between two cities in miles.
func Distance(a, b City) float64 {
	lat1, lon1 := a.Lat*math.Pi/180, a.Lon*math.Pi/180
	lat2, lon2 := b.Lat*math.Pi/180, b.Lon*math.Pi/180
	c := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(lon1-lon2)
	// Rounding can push c marginally outside [-1, 1].
	c = math.Max(-1, math.Min(1, c))
	return earthRadiusMiles * math.Acos(c)
}

// DistanceMatrix precomputes pairwise distances.
func DistanceMatrix(cities []City) [][]float64 {
	m := make([][]float64, len(cities))
	for i := range cities {
		m[i] = make([]float64, len(cities))
		for j := range cities {
			if i != j {
				m[i][j] = Distance(cities[i], cities[j])
			}
		}
	}
	return m
}

// TourLength returns the length of the closed tour visiting cities in order.
func TourLength(dist [][]float64, order []int) float64 {
	var total float64
	for i := range order {
		prev := order[(i+len(order)-1)%len(order)]
		total += dist[prev][order[i]]
	}
	return total
}

// Tour returns the move/energy pair for a closed tour over the matrix.
// Moves swap two random positions of a copy of the tour.
func Tour(dist [][]float64, rng *rand.Rand) lahc.Problem[[]int] {
	return lahc.Problem[[]int]{
		Move: func(order []int) ([]int, error) {
			next := append([]int(nil), order...)
			a, b := rng.Intn(len(next)), rng.Intn(len(next))
			next[a], next[b] = next[b], next[a]
			return next, nil
		},
		Energy: func(order []int) (float64, error) {
			return TourLength(dist, order), nil
		},
	}
}

func validPermutation(n int) func([]int) error {
	return func(order []int) error {
		if len(order) != n {
			return fmt.Errorf("tour has %d cities, want %d", len(order), n)
		}
		seen := make([]bool, n)
		for _, c := range order {
			if c < 0 || c >= n {
				return fmt.Errorf("city index %d out of range", c)
			}
			if seen[c] {
				return errors.New("tour visits a city twice")
			}
			seen[c] = true
		}
		return nil
	}
}

func newTSP() Runner {
	dist := DistanceMatrix(USCities)
	return &definition[[]int]{
		name:        "tsp",
		description: "Closed tour over the 20 largest US cities (distance in miles)",
		copy:        lahc.CopyShallow,
		initial: func(rng *rand.Rand) []int {
			return rng.Perm(len(USCities))
		},
		collab: func(rng *rand.Rand) lahc.Problem[[]int] {
			return Tour(dist, rng)
		},
		validate: validPermutation(len(USCities)),
	}
}

// CityNames maps a tour back to city names, rotated to start at the first
// city of USCities.
func CityNames(order []int) []string {
	start := 0
	for i, c := range order {
		if c == 0 {
			start = i
			break
		}
	}
	names := make([]string, 0, len(order))
	for i := range order {
		names = append(names, USCities[order[(start+i)%len(order)]].Name)
	}
	return names
}
