package stream_test

import (
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/stream"
)

var _ = Describe("SeenWindow", func() {
	It("evicts only the oldest id after one overflow", func() {
		w := stream.NewSeenWindow(500)
		for i := range 501 {
			w.Add("id-" + strconv.Itoa(i))
		}

		Expect(w.Len()).To(Equal(500))
		Expect(w.Contains("id-0")).To(BeFalse())
		for i := 1; i <= 500; i++ {
			Expect(w.Contains("id-" + strconv.Itoa(i))).To(BeTrue())
		}
	})

	It("ignores repeated adds", func() {
		w := stream.NewSeenWindow(2)
		w.Add("a")
		w.Add("a")
		w.Add("b")

		Expect(w.Len()).To(Equal(2))
		Expect(w.Contains("a")).To(BeTrue())
		Expect(w.Contains("b")).To(BeTrue())
	})

	It("keeps evicting in insertion order", func() {
		w := stream.NewSeenWindow(2)
		for _, id := range []string{"a", "b", "c", "d"} {
			w.Add(id)
		}

		Expect(w.Contains("a")).To(BeFalse())
		Expect(w.Contains("b")).To(BeFalse())
		Expect(w.Contains("c")).To(BeTrue())
		Expect(w.Contains("d")).To(BeTrue())
	})
})
