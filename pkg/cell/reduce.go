package cell

// Number is the set of types Sum and Average work over.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// SumRead adds all values.
func SumRead[N Number](values []N) N {
	var sum N
	for _, v := range values {
		sum += v
	}
	return sum
}

// SumWrite spreads the difference between target and the current sum
// evenly across the sources. Integer types truncate the share.
func SumWrite[N Number](target N, out []Maybe[N], buffer []N) {
	if len(buffer) == 0 {
		return
	}
	shift(out, buffer, SumRead(buffer), target, N(len(buffer)))
}

// AverageRead returns the arithmetic mean, or zero for no values.
func AverageRead[N Number](values []N) N {
	if len(values) == 0 {
		return 0
	}
	return SumRead(values) / N(len(values))
}

// AverageWrite shifts every source by the difference between target and
// the current average.
func AverageWrite[N Number](target N, out []Maybe[N], buffer []N) {
	if len(buffer) == 0 {
		return
	}
	shift(out, buffer, AverageRead(buffer), target, 1)
}

// shift moves every buffered value by (to-from)/n. The difference is taken
// in the direction that cannot underflow, so unsigned types stay exact.
func shift[N Number](out []Maybe[N], buffer []N, from, to, n N) {
	if to >= from {
		share := (to - from) / n
		for i, v := range buffer {
			out[i] = Some(v + share)
		}
		return
	}
	share := (from - to) / n
	for i, v := range buffer {
		out[i] = Some(v - share)
	}
}

// NewSum creates an aggregate holding the sum of sources.
func NewSum[N Number](sources []Observable[N], opts ...Option) *Aggregate[N] {
	return NewAggregate(sources, SumRead[N], SumWrite[N], opts...)
}

// NewAverage creates an aggregate holding the average of sources.
func NewAverage[N Number](sources []Observable[N], opts ...Option) *Aggregate[N] {
	return NewAggregate(sources, AverageRead[N], AverageWrite[N], opts...)
}
