package datasets

import (
	"image/color"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// Channels is the number of channels of image tensors (RGB).
const Channels = 3

// ImageToFloat32 flattens img into [height][width][Channels] values scaled
// to [0, 1], row-major.
func ImageToFloat32(s Sample) (data []float32, height, width int) {
	b := s.Image.Bounds()
	height, width = b.Dy(), b.Dx()
	data = make([]float32, 0, height*width*Channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(s.Image.At(x, y)).(color.RGBA)
			data = append(data, float32(c.R)/255, float32(c.G)/255, float32(c.B)/255)
		}
	}
	return data, height, width
}

// SamplesToTensors stacks samples into an images tensor shaped
// [batch, height, width, Channels] (float32) and a labels tensor shaped
// [batch] (int32). All images must have the same size.
func SamplesToTensors(samples []Sample) (images, labels *tensors.Tensor, err error) {
	if len(samples) == 0 {
		return nil, nil, errors.New("empty batch")
	}
	var flat []float32
	var height, width int
	labelData := make([]int32, len(samples))
	for i, s := range samples {
		data, h, w := ImageToFloat32(s)
		if i == 0 {
			height, width = h, w
			flat = make([]float32, 0, len(samples)*len(data))
		} else if h != height || w != width {
			return nil, nil, errors.Errorf("inconsistent image size at example %d: expected %dx%d, got %dx%d",
				i, width, height, w, h)
		}
		flat = append(flat, data...)
		labelData[i] = int32(s.Label)
	}
	images = tensors.FromFlatDataAndDimensions(flat, len(samples), height, width, Channels)
	labels = tensors.FromFlatDataAndDimensions(labelData, len(samples))
	return images, labels, nil
}

// Batches yields fixed-size batches of an image dataset as gomlx tensors,
// visiting every example once per epoch.
type Batches struct {
	name      string
	ds        BatchDataset
	batchSize int
	dropLast  bool
	rng       *rand.Rand

	order []int
	pos   int
}

var _ train.Dataset = (*Batches)(nil)

// NewBatches creates a train.Dataset named name over ds. If rng is not nil
// the order of examples is reshuffled on every Reset. With dropLast an
// incomplete final batch is skipped.
func NewBatches(name string, ds BatchDataset, batchSize int, rng *rand.Rand, dropLast bool) (*Batches, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", batchSize)
	}
	b := &Batches{
		name:      name,
		ds:        ds,
		batchSize: batchSize,
		dropLast:  dropLast,
		rng:       rng,
	}
	b.Reset()
	return b, nil
}

// Name implements train.Dataset.
func (b *Batches) Name() string { return b.name }

// Reset implements train.Dataset. It starts a new epoch.
func (b *Batches) Reset() {
	n := b.ds.Len()
	if b.rng != nil {
		b.order = b.rng.Perm(n)
	} else {
		b.order = make([]int, n)
		for i := range b.order {
			b.order[i] = i
		}
	}
	b.pos = 0
}

// NextIndices returns the indices of the next batch, or io.EOF at the end of
// the epoch.
func (b *Batches) NextIndices() ([]int, error) {
	remaining := len(b.order) - b.pos
	if remaining <= 0 || (b.dropLast && remaining < b.batchSize) {
		return nil, io.EOF
	}
	end := min(b.pos+b.batchSize, len(b.order))
	indices := b.order[b.pos:end]
	b.pos = end
	return indices, nil
}

// Yield implements train.Dataset. Inputs hold one images tensor and labels
// one labels tensor, see SamplesToTensors.
func (b *Batches) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices, err := b.NextIndices()
	if err != nil {
		return nil, nil, nil, err
	}
	samples, err := b.ds.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	imgT, labT, err := SamplesToTensors(samples)
	if err != nil {
		return nil, nil, nil, err
	}
	return b, []*tensors.Tensor{imgT}, []*tensors.Tensor{labT}, nil
}
