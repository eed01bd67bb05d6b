package nrf52_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

var _ = Describe("NVMC write discipline", func() {
	It("writes a word-aligned block after BeginWrite and returns to read-only after EndWrite", func() {
		m := newFakeMem()
		m.words[nrf52.NVMCReady] = 1
		ctx := context.Background()

		Expect(nrf52.BeginWrite(ctx, m)).To(Succeed())
		Expect(m.words[nrf52.NVMCConfig]).To(Equal(uint32(1)))

		Expect(nrf52.WriteWords(ctx, m, 0x2000_0000, []uint32{1, 2, 3})).To(Succeed())
		Expect(m.words[0x2000_0000]).To(Equal(uint32(1)))
		Expect(m.words[0x2000_0008]).To(Equal(uint32(3)))

		Expect(nrf52.EndWrite(ctx, m)).To(Succeed())
		Expect(m.words[nrf52.NVMCConfig]).To(Equal(uint32(0)))
	})

	It("rejects a misaligned write address", func() {
		m := newFakeMem()
		err := nrf52.WriteWords(context.Background(), m, 0x2000_0001, []uint32{1})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BytesToWords/WordsToBytes", func() {
	It("pads a trailing partial word with 0xFF", func() {
		words := nrf52.BytesToWords([]byte{0x01, 0x02, 0x03})
		Expect(words).To(HaveLen(1))
		Expect(words[0]).To(Equal(uint32(0xFF030201)))
	})

	It("round-trips exact word-multiple data", func() {
		in := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		words := nrf52.BytesToWords(in)
		out := nrf52.WordsToBytes(words, len(in))
		Expect(out).To(Equal(in))
	})
})
