package versioncmder

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("version command", func() {
	info := BuildInfo{Version: "v1.2.0", Sha: "abc123", Buildtime: "2026-10-01"}

	It("prints build information as text", func() {
		var out bytes.Buffer
		Expect((&versionCommander{}).run(&out, info)).To(Succeed())

		Expect(out.String()).To(Equal("chatrelay v1.2.0\ncommit: abc123\nbuilt at: 2026-10-01\n"))
	})

	It("prints build information as JSON", func() {
		var out bytes.Buffer
		Expect((&versionCommander{json: true}).run(&out, info)).To(Succeed())

		var decoded map[string]string
		Expect(json.Unmarshal(out.Bytes(), &decoded)).To(Succeed())
		Expect(decoded).To(Equal(map[string]string{
			"version":  "v1.2.0",
			"sha":      "abc123",
			"built_at": "2026-10-01",
		}))
	})

	It("writes to the command's output and rejects arguments", func() {
		var out bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})

		cmd.SetArgs([]string{"--json"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`"version": "dev"`))

		cmd.SetArgs([]string{"extra"})
		Expect(cmd.Execute()).NotTo(Succeed())
	})
})
