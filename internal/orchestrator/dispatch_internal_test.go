package orchestrator

import (
	"context"
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/guest-extension-agent/internal/cgroups"
	"github.com/kubev2v/guest-extension-agent/internal/handler"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
)

// These specs register into the same suite orchestrator_test.go's
// TestOrchestrator runs; a test binary may only call RunSpecs once.

// scriptedUpdateExecutor fails Start for any command whose script name is
// in failOn, succeeding otherwise, so each lifecycle phase can be steered
// independently.
type scriptedUpdateExecutor struct {
	failOn map[string]bool
	ran    []string
}

func (s *scriptedUpdateExecutor) Start(ctx context.Context, req cgroups.StartRequest) (string, error) {
	s.ran = append(s.ran, req.Command)
	for script := range s.failOn {
		if script != "" && contains(req.Command, script) {
			return "", errors.New(script + " failed")
		}
	}
	return "", nil
}
func (s *scriptedUpdateExecutor) CreateCgroup(fullName string) error { return nil }
func (s *scriptedUpdateExecutor) RemoveCgroup(fullName string) error { return nil }

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

type discardSink struct{}

func (discardSink) AddEvent(ev telemetry.Event) {}

func newTestInstance(libRoot, extLogRoot, name, version string, manifestJSON string) handler.Instance {
	id := models.HandlerIdentity{Name: name, Version: version}
	inst := handler.New(libRoot, extLogRoot, id, discardSink{})
	Expect(inst.InitLayout()).To(Succeed())
	Expect(os.WriteFile(inst.Paths.Manifest(), []byte(manifestJSON), 0o600)).To(Succeed())
	return inst
}

var _ = Describe("runUpdateSequence", func() {
	var (
		libRoot    string
		extLogRoot string
	)

	BeforeEach(func() {
		libRoot = GinkgoT().TempDir()
		extLogRoot = GinkgoT().TempDir()
	})

	It("aborts and leaves the handler Failed when the update command fails", func() {
		manifest := `{"handlerManifest":{"disableCommand":"/disable.sh","updateCommand":"/update.sh","uninstallCommand":"/uninstall.sh","installCommand":"/install.sh"}}`
		old := newTestInstance(libRoot, extLogRoot, "Foo", "1.0", manifest)
		Expect(old.State.SetState(models.HandlerStateInstalled)).To(Succeed())
		newInst := newTestInstance(libRoot, extLogRoot, "Foo", "2.0", manifest)

		executor := &scriptedUpdateExecutor{failOn: map[string]bool{"update.sh": true}}
		o := New(Config{LibRoot: libRoot, ExtLogRoot: extLogRoot}, nil, executor, discardSink{}, nil)

		uninstallFailed, err := o.runUpdateSequence(context.Background(), old, newInst)

		Expect(err).To(HaveOccurred())
		Expect(uninstallFailed).To(Equal("0"))
		Expect(newInst.State.GetState()).To(Equal(models.HandlerStateFailed))
		for _, cmd := range executor.ran {
			Expect(cmd).NotTo(ContainSubstring("uninstall.sh"))
			Expect(cmd).NotTo(ContainSubstring("install.sh"))
		}
	})

	It("aborts when uninstall fails and the manifest does not continue on update failure", func() {
		manifest := `{"handlerManifest":{"disableCommand":"/disable.sh","updateCommand":"/update.sh","uninstallCommand":"/uninstall.sh","installCommand":"/install.sh","continueOnUpdateFailure":false}}`
		old := newTestInstance(libRoot, extLogRoot, "Foo", "1.0", manifest)
		Expect(old.State.SetState(models.HandlerStateInstalled)).To(Succeed())
		newInst := newTestInstance(libRoot, extLogRoot, "Foo", "2.0", manifest)

		executor := &scriptedUpdateExecutor{failOn: map[string]bool{"uninstall.sh": true}}
		o := New(Config{LibRoot: libRoot, ExtLogRoot: extLogRoot}, nil, executor, discardSink{}, nil)

		uninstallFailed, err := o.runUpdateSequence(context.Background(), old, newInst)

		Expect(err).To(HaveOccurred())
		Expect(uninstallFailed).To(Equal("1"))
		Expect(newInst.State.GetState()).To(Equal(models.HandlerStateFailed))
		for _, cmd := range executor.ran {
			if !contains(cmd, "uninstall.sh") {
				Expect(cmd).NotTo(ContainSubstring("install.sh"))
			}
		}
	})

	It("continues past an uninstall failure when the manifest allows it, returning the flag and still running install", func() {
		manifest := `{"handlerManifest":{"disableCommand":"/disable.sh","updateCommand":"/update.sh","uninstallCommand":"/uninstall.sh","installCommand":"/install.sh","continueOnUpdateFailure":true}}`
		old := newTestInstance(libRoot, extLogRoot, "Foo", "1.0", manifest)
		Expect(old.State.SetState(models.HandlerStateInstalled)).To(Succeed())
		newInst := newTestInstance(libRoot, extLogRoot, "Foo", "2.0", manifest)

		executor := &scriptedUpdateExecutor{failOn: map[string]bool{"uninstall.sh": true}}
		o := New(Config{LibRoot: libRoot, ExtLogRoot: extLogRoot}, nil, executor, discardSink{}, nil)

		uninstallFailed, err := o.runUpdateSequence(context.Background(), old, newInst)

		Expect(err).NotTo(HaveOccurred())
		Expect(uninstallFailed).To(Equal("1"))
		Expect(newInst.State.GetState()).To(Equal(models.HandlerStateInstalled))

		var sawInstall bool
		for _, cmd := range executor.ran {
			if contains(cmd, "install.sh") && !contains(cmd, "uninstall.sh") {
				sawInstall = true
			}
		}
		Expect(sawInstall).To(BeTrue())
	})
})
