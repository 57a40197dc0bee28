package spectro

import "sort"

// PeakIndexes returns the column positions of local maxima in y. thres
// is a fraction of the min-to-max span; maxima below it are ignored.
// Of any two peaks closer than minDist columns, only the taller
// survives.
func PeakIndexes(y []float64, thres float64, minDist int) []int {
	if len(y) < 2 {
		return nil
	}
	mn, mx := y[0], y[0]
	for _, v := range y[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	t := thres*(mx-mn) + mn

	dy := make([]float64, len(y)-1)
	zeros := 0
	for i := range dy {
		dy[i] = y[i+1] - y[i]
		if dy[i] == 0 {
			zeros++
		}
	}

	// A totally flat signal has no peaks.
	if zeros == len(dy) {
		return nil
	}
	if zeros > 0 {
		fillPlateaus(dy)
	}

	// A peak is where the difference flips from positive to negative.
	var peaks []int
	for i := 1; i < len(y)-1; i++ {
		if dy[i] < 0 && dy[i-1] > 0 && y[i] > t {
			peaks = append(peaks, i)
		}
	}

	if len(peaks) > 1 && minDist > 1 {
		peaks = enforceMinDist(y, peaks, minDist)
	}
	return peaks
}

// fillPlateaus rewrites zero runs in the first-order difference with
// the neighbouring slopes, so a plateau top registers as a single sign
// change.
func fillPlateaus(dy []float64) {
	type run struct{ start, end int } // inclusive
	var runs []run
	for i := 0; i < len(dy); {
		if dy[i] != 0 {
			i++
			continue
		}
		j := i
		for j+1 < len(dy) && dy[j+1] == 0 {
			j++
		}
		runs = append(runs, run{i, j})
		i = j + 1
	}

	for _, r := range runs {
		switch {
		case r.start == 0:
			for i := r.start; i <= r.end; i++ {
				dy[i] = dy[r.end+1]
			}
		case r.end == len(dy)-1:
			for i := r.start; i <= r.end; i++ {
				dy[i] = dy[r.start-1]
			}
		default:
			// Interior run: the left half inherits the left slope, the
			// right half the right slope, split at the median column.
			med := float64(r.start+r.end) / 2
			for i := r.start; i <= r.end; i++ {
				if float64(i) < med {
					dy[i] = dy[r.start-1]
				} else {
					dy[i] = dy[r.end+1]
				}
			}
		}
	}
}

// enforceMinDist keeps the tallest peak in every minDist neighbourhood.
func enforceMinDist(y []float64, peaks []int, minDist int) []int {
	highest := make([]int, len(peaks))
	copy(highest, peaks)
	sort.SliceStable(highest, func(i, j int) bool { return y[highest[i]] > y[highest[j]] })

	rem := make([]bool, len(y))
	for i := range rem {
		rem[i] = true
	}
	for _, p := range peaks {
		rem[p] = false
	}

	for _, p := range highest {
		if rem[p] {
			continue
		}
		lo := p - minDist
		if lo < 0 {
			lo = 0
		}
		hi := p + minDist + 1
		if hi > len(y) {
			hi = len(y)
		}
		for i := lo; i < hi; i++ {
			rem[i] = true
		}
		rem[p] = false
	}

	var out []int
	for i, r := range rem {
		if !r {
			out = append(out, i)
		}
	}
	return out
}
