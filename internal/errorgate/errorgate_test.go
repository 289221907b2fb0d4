package errorgate_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/guest-extension-agent/internal/errorgate"
)

func TestErrorGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ErrorGate Suite")
}

var _ = Describe("Gate", func() {
	It("does not trigger before minCount failures", func() {
		g := errorgate.New(0, 3)
		g.Incr()
		g.Incr()
		Expect(g.IsTriggered()).To(BeFalse())
	})

	It("triggers once both minCount and delta are satisfied", func() {
		g := errorgate.New(0, 2)
		g.Incr()
		g.Incr()
		Expect(g.IsTriggered()).To(BeTrue())
	})

	It("does not trigger until delta has elapsed", func() {
		g := errorgate.New(time.Hour, 1)
		g.Incr()
		Expect(g.IsTriggered()).To(BeFalse())
	})

	It("resets the counter", func() {
		g := errorgate.New(0, 1)
		g.Incr()
		Expect(g.IsTriggered()).To(BeTrue())
		g.Reset()
		Expect(g.IsTriggered()).To(BeFalse())
	})
})
