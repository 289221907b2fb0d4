package statusparser_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/statusparser"
)

func TestStatusParser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "StatusParser Suite")
}

var _ = Describe("ParseStatusFile", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reports warning (non-terminal) when the file is missing (P8)", func() {
		got := statusparser.ParseStatusFile(filepath.Join(dir, "7.status"), 7)
		Expect(got.Status).To(Equal(models.ExtStatusWarning))
		Expect(got.Status.IsTerminal()).To(BeFalse())
	})

	It("round-trips substatus length and drops null entries (P5)", func() {
		content := `[{"status":{"status":"success","code":0,"substatus":[
			{"name":"a","status":"success","code":0},
			null,
			{"name":"b","status":"warning","code":1}
		]}}]`
		path := filepath.Join(dir, "1.status")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		got := statusparser.ParseStatusFile(path, 1)
		Expect(got.Status).To(Equal(models.ExtStatusSuccess))
		Expect(got.Substatus).To(HaveLen(2))
	})

	It("reports error with PluginSettingsStatusInvalid on malformed JSON", func() {
		path := filepath.Join(dir, "1.status")
		Expect(os.WriteFile(path, []byte("not json"), 0o600)).To(Succeed())

		got := statusparser.ParseStatusFile(path, 1)
		Expect(got.Status).To(Equal(models.ExtStatusError))
		Expect(got.Code).To(Equal(1002))
	})

	It("maps an unknown status string to error", func() {
		content := `[{"status":{"status":"bogus","code":0}}]`
		path := filepath.Join(dir, "1.status")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		got := statusparser.ParseStatusFile(path, 1)
		Expect(got.Status).To(Equal(models.ExtStatusError))
	})

	It("requires both lang and message on formattedMessage", func() {
		content := `[{"status":{"status":"success","code":0,"formattedMessage":{"lang":"en"}}}]`
		path := filepath.Join(dir, "1.status")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		got := statusparser.ParseStatusFile(path, 1)
		Expect(got.Status).To(Equal(models.ExtStatusError))
	})
})

var _ = Describe("ParseHeartbeat", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reports Unresponsive when mtime is 601s old (P6)", func() {
		path := filepath.Join(dir, "heartbeat.log")
		Expect(os.WriteFile(path, []byte(`[{"heartbeat":{"status":"Ready","code":0,"message":"ok"}}]`), 0o600)).To(Succeed())
		old := time.Now().Add(-601 * time.Second)
		Expect(os.Chtimes(path, old, old)).To(Succeed())

		_, unresponsive, err := statusparser.ParseHeartbeat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(unresponsive).To(BeTrue())
	})

	It("surfaces the heartbeat's own status when mtime is 599s old (P6)", func() {
		path := filepath.Join(dir, "heartbeat.log")
		Expect(os.WriteFile(path, []byte(`[{"heartbeat":{"status":"Ready","code":0,"message":"ok"}}]`), 0o600)).To(Succeed())
		recent := time.Now().Add(-599 * time.Second)
		Expect(os.Chtimes(path, recent, recent)).To(Succeed())

		hb, unresponsive, err := statusparser.ParseHeartbeat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(unresponsive).To(BeFalse())
		Expect(hb.Status).To(Equal("Ready"))
	})
})
