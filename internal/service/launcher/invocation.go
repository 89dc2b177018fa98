package launcher

import (
	"strconv"
	"strings"

	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/service/process"
)

// Variables exported to the application.
const (
	EnvWrapperScriptDir   = "BATECT_WRAPPER_SCRIPT_DIR"
	EnvWrapperCacheDir    = "BATECT_WRAPPER_CACHE_DIR"
	EnvWrapperDidDownload = "BATECT_WRAPPER_DID_DOWNLOAD"
	EnvHostname           = "HOSTNAME"
)

// wrapperVariablePrefix starts every variable the launcher exports; inherited ones are stale.
const wrapperVariablePrefix = "BATECT_WRAPPER_"

// AddOpensMajor is the first Java major version that needs explicit module access.
const AddOpensMajor = 9

// systemProxiesOption makes the JVM use the operating system's proxy settings.
const systemProxiesOption = "-Djava.net.useSystemProxies=true"

// addOpensOptions opens the internals the application relies on under the module system.
var addOpensOptions = []string{
	"--add-opens", "java.base/sun.nio.ch=ALL-UNNAMED",
	"--add-opens", "java.base/java.io=ALL-UNNAMED",
}

// BuildInvocation assembles the application command line and environment.
func BuildInvocation(
	candidate bootstrap.RuntimeCandidate,
	entry bootstrap.CacheEntry,
	launchContext bootstrap.LaunchContext,
	parentEnv []string,
) process.Invocation {
	args := make([]string, 0, len(launchContext.ForwardedArgs)+len(addOpensOptions)+3)
	args = append(args, systemProxiesOption)

	if candidate.Major >= AddOpensMajor {
		args = append(args, addOpensOptions...)
	}

	args = append(args, "-jar", entry.ArtifactPath)
	args = append(args, launchContext.ForwardedArgs...)

	return process.Invocation{
		Path: candidate.ExecutablePath,
		Args: args,
		Env:  BuildEnvironment(parentEnv, launchContext),
	}
}

// BuildEnvironment derives the application environment from the parent's.
// Inherited BATECT_WRAPPER_* variables are dropped.
// JAVA_TOOL_OPTIONS is only set when the parent had it, even if empty there.
func BuildEnvironment(parentEnv []string, launchContext bootstrap.LaunchContext) []string {
	replacedNames := []string{config.EnvJavaToolOptions}
	if launchContext.Hostname != "" {
		replacedNames = append(replacedNames, EnvHostname)
	}

	replaced := make(map[string]struct{}, len(replacedNames))
	for _, name := range replacedNames {
		replaced[config.NormalizeVariableName(name)] = struct{}{}
	}

	env := make([]string, 0, len(parentEnv)+len(replaced))

	prefix := config.NormalizeVariableName(wrapperVariablePrefix)

	for _, entry := range parentEnv {
		name := config.NormalizeVariableName(variableName(entry))
		if strings.HasPrefix(name, prefix) {
			continue
		}

		if _, ok := replaced[name]; ok {
			continue
		}

		env = append(env, entry)
	}

	env = append(env,
		EnvWrapperScriptDir+"="+launchContext.ScriptDir,
		EnvWrapperCacheDir+"="+launchContext.CacheDir,
		EnvWrapperDidDownload+"="+strconv.FormatBool(launchContext.DidDownload),
	)

	if launchContext.Hostname != "" {
		env = append(env, EnvHostname+"="+launchContext.Hostname)
	}

	if launchContext.HasExtraJVMOptions {
		env = append(env, config.EnvJavaToolOptions+"="+launchContext.ExtraJVMOptions)
	}

	return env
}

// variableName returns the name part of a NAME=value entry.
func variableName(entry string) string {
	for i := 0; i < len(entry); i++ {
		if entry[i] == '=' && i > 0 {
			return entry[:i]
		}
	}

	return entry
}
