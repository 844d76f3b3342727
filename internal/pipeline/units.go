package pipeline

import (
	"fmt"
	"math/rand/v2"
)

// Unit is one compile unit handed to a worker.
type Unit struct {
	Name string
	// Artifacts are the outputs the unit is expected to produce.
	Artifacts []string
	// Stream is the order the toolchain reports files in, expected artifacts
	// interleaved with scratch files.
	Stream []string
}

var artifactSuffixes = []string{".o", ".d", ".sym"}

// planUnits builds n units. Streams are drawn here, on the coordinator, since
// rng is not safe for concurrent use.
func planUnits(n int, noiseRatio float64, rng *rand.Rand) []Unit {
	units := make([]Unit, n)
	for i := range units {
		name := fmt.Sprintf("unit-%03d", i)
		artifacts := make([]string, len(artifactSuffixes))
		for j, suffix := range artifactSuffixes {
			artifacts[j] = name + suffix
		}
		units[i] = Unit{
			Name:      name,
			Artifacts: artifacts,
			Stream:    artifactStream(name, artifacts, noiseRatio, rng),
		}
	}
	return units
}

// artifactStream shuffles artifacts and, with probability noiseRatio, puts a
// scratch file before each of them. Every artifact appears exactly once.
func artifactStream(name string, artifacts []string, noiseRatio float64, rng *rand.Rand) []string {
	order := make([]string, len(artifacts))
	copy(order, artifacts)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	stream := make([]string, 0, 2*len(order))
	scratch := 0
	for _, artifact := range order {
		if noiseRatio > 0 && rng.Float64() < noiseRatio {
			stream = append(stream, fmt.Sprintf("%s.tmp%d", name, scratch))
			scratch++
		}
		stream = append(stream, artifact)
	}
	return stream
}
