// Package postpro reduces recorded water temperatures to daily statistics
// and the seven day average of the daily maximum (7DADM).
package postpro

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/echoflaresat/heatsource/model"
)

// Window is the number of consecutive days averaged by the 7DADM.
const Window = 7

// Day holds the statistics of one node on one calendar day.
type Day struct {
	Date time.Time `json:"date"`
	Min  float64   `json:"min"`
	Max  float64   `json:"max"`
	Mean float64   `json:"mean"`
	// SevenDADM is the mean daily maximum over this day and the six before
	// it. It is valid only when Has7DADM is set.
	SevenDADM float64 `json:"seven_dadm,omitempty"`
	Has7DADM  bool    `json:"has_seven_dadm"`
}

// Node summarises one river km.
type Node struct {
	KM   float64 `json:"km"`
	Days []Day   `json:"days"`
	// MaxSevenDADM is the largest 7DADM of the node, valid when Has7DADM.
	MaxSevenDADM   float64   `json:"max_seven_dadm,omitempty"`
	MaxSevenDADMOn time.Time `json:"max_seven_dadm_on,omitempty"`
	Has7DADM       bool      `json:"has_seven_dadm"`
}

// Summarize groups the temperature records of res by node and wall clock
// calendar day.
func Summarize(res *model.Result) []Node {
	days, index := calendarDays(res.Times)
	nodes := make([]Node, len(res.KM))
	buckets := make([][]float64, len(days))

	for j, km := range res.KM {
		for d := range buckets {
			buckets[d] = buckets[d][:0]
		}
		for i, row := range res.Temperature {
			buckets[index[i]] = append(buckets[index[i]], row[j])
		}

		n := Node{KM: km, Days: make([]Day, len(days))}
		for d, date := range days {
			v := buckets[d]
			n.Days[d] = Day{
				Date: date,
				Min:  floats.Min(v),
				Max:  floats.Max(v),
				Mean: stat.Mean(v, nil),
			}
		}
		sevenDay(&n)
		nodes[j] = n
	}
	return nodes
}

// sevenDay fills the rolling 7DADM wherever the window covers Window
// consecutive calendar days, and the node maximum.
func sevenDay(n *Node) {
	maxima := make([]float64, len(n.Days))
	run := 0
	for d := range n.Days {
		maxima[d] = n.Days[d].Max
		if d > 0 && n.Days[d].Date.Equal(n.Days[d-1].Date.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		if run < Window {
			continue
		}
		v := stat.Mean(maxima[d-Window+1:d+1], nil)
		n.Days[d].SevenDADM, n.Days[d].Has7DADM = v, true
		if !n.Has7DADM || v > n.MaxSevenDADM {
			n.MaxSevenDADM, n.MaxSevenDADMOn, n.Has7DADM = v, n.Days[d].Date, true
		}
	}
}

// calendarDays returns the distinct dates of times in order and, for each
// time, the index of its date.
func calendarDays(times []time.Time) ([]time.Time, []int) {
	var days []time.Time
	index := make([]int, len(times))
	for i, t := range times {
		y, m, d := t.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		if len(days) == 0 || !days[len(days)-1].Equal(date) {
			days = append(days, date)
		}
		index[i] = len(days) - 1
	}
	return days, index
}
