package installer

import (
	"runtime"
	"strings"
)

// InstallRootVar is the single variable injected into every installer
// invocation.
const InstallRootVar = "CARGO_INSTALL_ROOT"

// sandboxedVars are stripped from the environment before any installer runs
// so ambient cargo and rustup settings cannot redirect the install.
var sandboxedVars = []string{
	"CARGO_INSTALL_ROOT",
	"CARGO_HOME",
	"CARGO_BUILD_TARGET_DIR",
	"CARGO_TARGET_DIR",
	"BINSTALL_INSTALL_PATH",
	"RUSTUP_HOME",
	"RUSTUP_TOOLCHAIN",
}

// SandboxEnv returns a copy of environ with the cargo and rustup location
// variables removed and CARGO_INSTALL_ROOT set to root exactly once.
// environ is not modified.
func SandboxEnv(environ []string, root string) []string {
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if isSandboxed(envKey(kv)) {
			continue
		}
		env = append(env, kv)
	}
	return setEnv(env, InstallRootVar, root)
}

func isSandboxed(key string) bool {
	for _, v := range sandboxedVars {
		if sameKey(key, v) {
			return true
		}
	}
	return false
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

// sameKey compares variable names the way the host OS does.
func sameKey(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// setEnv sets key=value in env, replacing an existing entry.
func setEnv(env []string, key, value string) []string {
	for i, e := range env {
		if sameKey(envKey(e), key) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}
