package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Distribution is the 1..5 star histogram. Index 0 holds the one-star bucket.
type Distribution [5]int

// Bucket returns the count for the given star level, 0 outside 1..5.
func (d Distribution) Bucket(star int) int {
	if star < 1 || star > 5 {
		return 0
	}
	return d[star-1]
}

// Total is the number of reviews placed in any bucket.
func (d Distribution) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// Percentages returns round(bucket/total*100) per star level (index 0 is one
// star). All zeros when total is not positive.
func (d Distribution) Percentages(total int) [5]int {
	var out [5]int
	if total <= 0 {
		return out
	}
	for i, n := range d {
		out[i] = int(math.Round(float64(n) / float64(total) * 100))
	}
	return out
}

// MarshalJSON always emits all five keys, "1" through "5".
func (d Distribution) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, 5)
	for i, n := range d {
		m[strconv.Itoa(i+1)] = n
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a star-keyed object, zero-filling missing buckets.
func (d *Distribution) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	buckets := make(map[int]int, len(m))
	for k, v := range m {
		star, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		buckets[star] = v
	}
	*d = FillDistribution(buckets)
	return nil
}

// BuildDistribution counts floor(score) per bucket. Scores outside [1,5]
// (including 0 for reviews without a score) land in no bucket.
func BuildDistribution(reviews []Review) Distribution {
	var d Distribution
	for _, r := range reviews {
		if math.IsNaN(r.Score) {
			continue
		}
		star := int(math.Floor(r.Score))
		if star >= 1 && star <= 5 {
			d[star-1]++
		}
	}
	return d
}

// FillDistribution trusts a server-provided histogram. Missing stars become 0,
// out-of-range keys are dropped and negative counts clamp to 0.
func FillDistribution(buckets map[int]int) Distribution {
	var d Distribution
	for star, n := range buckets {
		if star < 1 || star > 5 || n < 0 {
			continue
		}
		d[star-1] = n
	}
	return d
}
