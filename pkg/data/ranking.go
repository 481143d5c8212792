package data

import (
	"math"
	"sort"
	"sync"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// totalOrderKey maps f to an unsigned key whose natural order is
// -Inf < ... < 0 < ... < +Inf < NaN. Both zeros share a key, as do all NaNs,
// so they tie and keep neuron index order.
func totalOrderKey(f float32) uint32 {
	switch {
	case math.IsNaN(float64(f)):
		return math.MaxUint32
	case f == 0:
		f = 0
	}
	bits := math.Float32bits(f)
	if bits&(1<<31) != 0 {
		return ^bits
	}
	return bits | 1<<31
}

// RankNeurons ranks the neurons of every layer by metric, a (layers, neurons)
// array, in ascending order with NaN last and ties broken by neuron index.
//
// rank[l][n] is the position of neuron n within layer l and ranked[l][r] is
// the neuron at position r, so ranked[l][rank[l][n]] == n. Layers are ranked
// concurrently.
func RankNeurons(metric *NDArray[float32]) (rank, ranked *NDArray[uint32], err error) {
	if metric.NDim() != 2 {
		return nil, nil, tserrors.DataErrorf(tserrors.ErrShapeMismatch,
			"ranking metric must be 2-dimensional, got shape %v", metric.shape)
	}
	layers, neurons := metric.shape[0], metric.shape[1]
	rankData := make([]uint32, layers*neurons)
	rankedData := make([]uint32, layers*neurons)

	var wg sync.WaitGroup
	for l := 0; l < layers; l++ {
		wg.Add(1)
		go func(l int) {
			defer wg.Done()
			row := metric.data[l*neurons : (l+1)*neurons]
			order := rankedData[l*neurons : (l+1)*neurons]
			for n := range order {
				order[n] = uint32(n)
			}
			sort.SliceStable(order, func(i, j int) bool {
				return totalOrderKey(row[order[i]]) < totalOrderKey(row[order[j]])
			})
			positions := rankData[l*neurons : (l+1)*neurons]
			for r, n := range order {
				positions[n] = uint32(r)
			}
		}(l)
	}
	wg.Wait()

	shape := []int{layers, neurons}
	return &NDArray[uint32]{shape: shape, data: rankData},
		&NDArray[uint32]{shape: append([]int{}, shape...), data: rankedData}, nil
}
