//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/test/fixtures"
)

var _ = Describe("Restart and preference orchestration", func() {
	var (
		tmpDir  string
		profile *fixtures.FakeProfile
		browser *fixtures.FakeBrowser
		host    *testHost
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("restart scripts are exercised under /bin/sh")
		}

		var err error
		tmpDir, err = os.MkdirTemp("", "nativehost-integration-*")
		Expect(err).NotTo(HaveOccurred())

		profile = fixtures.NewFakeProfile(filepath.Join(tmpDir, "profile"))
		Expect(profile.Create()).To(Succeed())

		browser = fixtures.NewFakeBrowser(filepath.Join(tmpDir, "bin"), "fakefox")
		Expect(browser.Create()).To(Succeed())
		GinkgoT().Setenv("PATH", browser.Dir+string(os.PathListSeparator)+os.Getenv("PATH"))

		host = newTestHost(tmpDir, false)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("add_firefox_prefs", func() {
		It("should append one line per preference to user.js", func() {
			reply := host.send(map[string]interface{}{
				"cmd":        "add_firefox_prefs",
				"profiledir": profile.Dir,
				"prefs":      `{"browser.startup.page": 3}`,
			})

			Expect(reply.OK()).To(BeTrue(), reply.Error)
			Expect(reply.Content).To(Equal("Added 1 preferences to " + filepath.Join(profile.Dir, "user.js") + ". Restart Firefox to activate."))

			lines, err := profile.Lines("user.js")
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{`user_pref("browser.startup.page", 3);`}))
		})

		It("should reject a directory that is not a profile", func() {
			dir := filepath.Join(tmpDir, "not-a-profile")
			Expect(os.Mkdir(dir, 0755)).To(Succeed())

			reply := host.send(map[string]string{"cmd": "add_firefox_prefs", "profiledir": dir, "prefs": `{"a":1}`})

			Expect(reply.StatusCode()).To(Equal(-1))
			Expect(reply.Error).To(Equal("Invalid profile directory: " + dir))
			Expect(filepath.Join(dir, "user.js")).NotTo(BeAnExistingFile())
		})
	})

	Describe("restart_firefox", func() {
		Context("when the browser command cannot be found", func() {
			It("should fail without leaving a script behind", func() {
				reply := host.send(map[string]string{
					"cmd":        "restart_firefox",
					"profiledir": profile.Dir,
					"browsercmd": "not-a-real-binary",
				})

				Expect(reply.StatusCode()).To(BeNumerically("<", 0))
				Expect(reply.Error).To(ContainSubstring("$PATH"))

				entries, _ := os.ReadDir(host.platform.HookDir)
				for _, e := range entries {
					Expect(e.Name()).NotTo(ContainSubstring("restart-"))
				}
				Expect(host.runner.Scripts()).To(BeEmpty())
			})
		})

		Context("when the browser has exited", func() {
			It("should run deferred edits and relaunch the browser", func() {
				Expect(profile.WriteFile("user.js", `user_pref("a.b", 1);`, `user_pref("keep", 2);`)).To(Succeed())
				Expect(profile.WriteFile("prefs.js", `user_pref("a.b", 1);`, `user_pref("other", 3);`)).To(Succeed())

				replies := host.exchange(
					map[string]string{"cmd": "remove_firefox_prefs", "profiledir": profile.Dir, "prefs": `["a.b"]`},
					map[string]string{"cmd": "restart_firefox", "profiledir": profile.Dir, "browsercmd": "fakefox"},
				)
				Expect(replies[0].Content).To(Equal(
					"Removed 1 of 2 lines from " + filepath.Join(profile.Dir, "user.js") + ". " +
						"1 of 2 lines will be removed from " + filepath.Join(profile.Dir, "prefs.js") + " on restart."))
				Expect(replies[1].Content).To(Equal("Restarting in 0 seconds..."))

				scripts := host.runner.Scripts()
				Expect(scripts).To(HaveLen(1))
				Expect(runScript(scripts[0])).To(Equal(0))

				lines, err := profile.Lines("prefs.js")
				Expect(err).NotTo(HaveOccurred())
				Expect(lines).To(Equal([]string{`user_pref("other", 3);`}))

				Eventually(func() string {
					args, _ := browser.Launched()
					return args
				}, "5s", "20ms").Should(Equal("-foreground -profile " + profile.Dir))

				pending, err := host.hooks.Pending(domain.PhasePreRestart)
				Expect(err).NotTo(HaveOccurred())
				Expect(pending).To(BeEmpty())
				Expect(scripts[0]).NotTo(BeAnExistingFile())
			})
		})

		Context("when the browser never releases its lock", func() {
			It("should give up without running hooks or relaunching", func() {
				Expect(profile.WriteFile("user.js", `user_pref("a.b", 1);`)).To(Succeed())
				Expect(profile.WriteFile("prefs.js", `user_pref("a.b", 1);`)).To(Succeed())
				Expect(profile.Lock()).To(Succeed())

				replies := host.exchange(
					map[string]string{"cmd": "remove_firefox_prefs", "profiledir": profile.Dir, "prefs": `["a.b"]`},
					map[string]string{"cmd": "win_firefox_restart", "profiledir": profile.Dir, "browsercmd": "fakefox"},
				)
				Expect(replies[1].Cmd).To(Equal("win_firefox_restart"))
				Expect(replies[1].OK()).To(BeTrue(), replies[1].Error)

				Expect(runScript(host.runner.Scripts()[0])).To(Equal(1))

				lines, err := profile.Lines("prefs.js")
				Expect(err).NotTo(HaveOccurred())
				Expect(lines).To(Equal([]string{`user_pref("a.b", 1);`}))

				_, launched := browser.Launched()
				Expect(launched).To(BeFalse())

				pending, err := host.hooks.Pending(domain.PhasePreRestart)
				Expect(err).NotTo(HaveOccurred())
				Expect(pending).To(HaveLen(1))

				log, err := os.ReadFile(filepath.Join(host.platform.HookDir, "restart.log"))
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.Contains(string(log), "restart abandoned")).To(BeTrue())
			})
		})
	})

	Describe("builtin commands", func() {
		It("should answer version and read through the same stream", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "rc"), []byte("set x y"), 0644)).To(Succeed())

			replies := host.exchange(
				map[string]string{"cmd": "version"},
				map[string]string{"cmd": "read", "file": "~/rc"},
				map[string]string{"cmd": "no_such_command"},
			)

			Expect(replies[0].Version).To(Equal("test"))
			Expect(replies[1].Content).To(Equal("set x y"))
			Expect(replies[2].Cmd).To(Equal(domain.ErrorCmd))
			Expect(replies[2].Error).To(Equal("Unhandled message"))
		})
	})
})
