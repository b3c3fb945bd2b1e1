// Package gen 提供压测用随机二进制描述子生成
package gen

import (
	"math/rand"

	"github.com/ic-timon/hbst/hbst"
)

// RandomDescriptors 生成 n 个 bits 位描述子，每个随机置位 setBits 次（稀疏，类 ORB 分布由 setBits 控制）
func RandomDescriptors(n, bits, setBits int, seed int64) []hbst.Descriptor {
	rng := rand.New(rand.NewSource(seed))
	out := make([]hbst.Descriptor, n)
	for i := 0; i < n; i++ {
		d := hbst.NewDescriptor(bits)
		for j := 0; j < setBits; j++ {
			d.Set(rng.Intn(bits))
		}
		out[i] = d
	}
	return out
}

// Noisy 复制描述子并翻转 flips 个随机位，模拟同一场景的重复观测
func Noisy(ds []hbst.Descriptor, flips int, seed int64) []hbst.Descriptor {
	rng := rand.New(rand.NewSource(seed))
	out := make([]hbst.Descriptor, len(ds))
	for i, d := range ds {
		c := d.Clone()
		for j := 0; j < flips; j++ {
			c.Flip(rng.Intn(d.Bits()))
		}
		out[i] = c
	}
	return out
}

// Matchables 将描述子包装为同一图像 identifier 的 matchable，payload 为描述子下标
func Matchables(ds []hbst.Descriptor, identifier uint64) []*hbst.Matchable[uint64] {
	out := make([]*hbst.Matchable[uint64], len(ds))
	for i, d := range ds {
		out[i] = hbst.NewMatchable(uint64(i), d, identifier)
	}
	return out
}

// Images 生成 images 张图像的描述子，第 i 张使用种子 seed+i
func Images(images, perImage, bits, setBits int, seed int64) [][]hbst.Descriptor {
	out := make([][]hbst.Descriptor, images)
	for i := range out {
		out[i] = RandomDescriptors(perImage, bits, setBits, seed+int64(i))
	}
	return out
}
