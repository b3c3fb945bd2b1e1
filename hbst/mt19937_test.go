package hbst

// mt19937 is the 32-bit Mersenne Twister, used to generate the same synthetic descriptor
// sets as other HBST implementations seeded with the same value.
type mt19937 struct {
	mt  [624]uint32
	idx int
}

func newMT19937(seed uint32) *mt19937 {
	g := &mt19937{idx: 624}
	g.mt[0] = seed
	for i := 1; i < 624; i++ {
		g.mt[i] = 1812433253*(g.mt[i-1]^(g.mt[i-1]>>30)) + uint32(i)
	}
	return g
}

func (g *mt19937) twist() {
	for i := 0; i < 624; i++ {
		y := (g.mt[i] & 0x80000000) | (g.mt[(i+1)%624] & 0x7fffffff)
		v := g.mt[(i+397)%624] ^ (y >> 1)
		if y&1 != 0 {
			v ^= 0x9908b0df
		}
		g.mt[i] = v
	}
	g.idx = 0
}

func (g *mt19937) Uint32() uint32 {
	if g.idx >= 624 {
		g.twist()
	}
	y := g.mt[g.idx]
	g.idx++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// bitIndex draws a uniform bit index in [0, 256) with multiply-shift range reduction.
func (g *mt19937) bitIndex() int {
	return int(uint64(g.Uint32()) * 256 >> 32)
}

// setRandomBits sets n uniformly drawn bits of d (drawing the same bit twice sets it once).
func (g *mt19937) setRandomBits(d Descriptor, n int) {
	for i := 0; i < n; i++ {
		d.Set(g.bitIndex())
	}
}

// fixture holds the synthetic data set: 10 training images and 1 query image of 1000
// sparse 256-bit descriptors each. Payloads are the descriptor index.
type fixture struct {
	rng   *mt19937
	train [][]*Matchable[uint64]
	query [][]*Matchable[uint64]
}

const (
	fixtureImagesTrain       = 10
	fixtureImagesQuery       = 1
	fixtureDescriptorsPerImg = 1000
	fixtureBitsToSet         = 18
)

func newFixture() *fixture {
	f := &fixture{rng: newMT19937(0)}
	f.train = f.generate(fixtureImagesTrain, 0)
	f.query = f.generate(fixtureImagesQuery, fixtureImagesTrain)
	return f
}

func (f *fixture) generate(images int, firstIdentifier uint64) [][]*Matchable[uint64] {
	out := make([][]*Matchable[uint64], 0, images)
	for img := 0; img < images; img++ {
		batch := make([]*Matchable[uint64], 0, fixtureDescriptorsPerImg)
		for i := 0; i < fixtureDescriptorsPerImg; i++ {
			d := NewDescriptor(256)
			f.rng.setRandomBits(d, fixtureBitsToSet)
			batch = append(batch, NewMatchable(uint64(i), d, firstIdentifier+uint64(img)))
		}
		out = append(out, batch)
	}
	return out
}

// noisy returns copies of batch with n additional random bits set per descriptor.
func (f *fixture) noisy(batch []*Matchable[uint64], n int) []*Matchable[uint64] {
	out := make([]*Matchable[uint64], 0, len(batch))
	for _, m := range batch {
		d := m.Descriptor().Clone()
		f.rng.setRandomBits(d, n)
		out = append(out, NewMatchable(m.Object(), d, m.Identifier()))
	}
	return out
}

// fixtureConfig mirrors the parameters the synthetic data set is tuned for.
func fixtureConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxPartitioning = 0.45
	cfg.SplitThreshold = 100
	return cfg
}
