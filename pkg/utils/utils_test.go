package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	me "github.com/mandelsoft/vergraph/pkg/utils"
)

var _ = Describe("utils", func() {
	Context("hashing", func() {
		It("is independent of field order", func() {
			a := map[string]interface{}{"a": 1, "b": "x"}
			b := map[string]interface{}{"b": "x", "a": 1}
			Expect(me.HashData(a)).To(Equal(me.HashData(b)))
			Expect(me.HashData(a)).To(HaveLen(64))
		})

		It("distinguishes values", func() {
			Expect(me.HashData(4)).NotTo(Equal(me.HashData(8)))
			Expect(me.HashData("4")).NotTo(Equal(me.HashData(4)))
		})

		It("maps nil to the empty hash", func() {
			var m map[string]int
			Expect(me.HashData(m)).To(Equal(""))
		})

		It("provides canonical json", func() {
			data, err := me.CanonicalJSON(map[string]interface{}{"z": 1, "a": []int{2, 1}})
			Expect(err).To(Succeed())
			Expect(string(data)).To(Equal(`{"a":[2,1],"z":1}`))
		})
	})

	Context("slices", func() {
		It("reverses a copy", func() {
			in := []int{1, 2, 3}
			Expect(me.Reversed(in)).To(Equal([]int{3, 2, 1}))
			Expect(in).To(Equal([]int{1, 2, 3}))
		})

		It("transforms", func() {
			Expect(me.TransformSlice([]int{1, 2}, func(i int) int { return i * 2 })).To(Equal([]int{2, 4}))
		})

		It("selects optional values", func() {
			Expect(me.Optional[string]()).To(Equal(""))
			Expect(me.Optional("", "b")).To(Equal("b"))
			Expect(me.OptionalDefaulted("d")).To(Equal("d"))
			Expect(me.OptionalDefaulted("d", "x")).To(Equal("x"))
		})

		It("sorts map keys", func() {
			keys := me.MapKeys(map[string]int{"b": 1, "a": 2}, func(a, b string) int {
				if a < b {
					return -1
				}
				if a > b {
					return 1
				}
				return 0
			})
			Expect(keys).To(Equal([]string{"a", "b"}))
		})
	})
})
