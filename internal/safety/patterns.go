package safety

import "regexp"

// dangerousCommandPatterns is adapted from the teacher's
// internal/tools/shell.go defaultDenyPatterns: a categorized deny list
// covering destructive file ops, privilege escalation, dangerous device
// writes, fork bombs, and credential-file reads. Trimmed to the patterns
// spec §4.2 step 4 names explicitly for build-mode command validation.
var dangerousCommandPatterns = []*regexp.Regexp{
	// destructive filesystem operations
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b.*\s/\s*$`),
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b.*\s/(\s|$)`),
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b`),

	// fork bombs
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),

	// privilege escalation
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bsu\s+-`),

	// dangerous device / disk operations
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\s+.*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`\bdevice\b.*/dev/`),

	// credential file reads
	regexp.MustCompile(`/etc/passwd`),
	regexp.MustCompile(`/etc/shadow`),

	// remote code execution / reverse shells
	regexp.MustCompile(`\b(nc|ncat|netcat)\b.*-[el]\b`),
	regexp.MustCompile(`/dev/tcp/`),
	regexp.MustCompile(`\bbash\s+-i\b`),

	// environment dumping
	regexp.MustCompile(`\benv\s*\|\s*curl\b`),
	regexp.MustCompile(`\bprintenv\b.*\|`),
}

// networkCommandPrefixes are denied unless SafetyConfig.AllowNetworkCommands
// is set, per spec §4.2 step 4.
var networkCommandPrefixes = []string{"curl", "wget", "nc", "ncat", "netcat", "scp", "rsync", "ssh", "ftp", "sftp", "telnet"}

// mutatingTokens are substrings that mark a command as non-read-only for
// the purpose of plan-mode command validation.
var mutatingTokens = []string{
	">", ">>",
	"rm ", "rm\t",
	"git add", "git commit", "git push", "git rebase", "git reset --hard", "git checkout -- ",
	"npm install", "npm i ", "yarn add", "pnpm add", "pip install", "go install",
	"make ", "go build", "npm run build", "yarn build",
	"mv ", "cp ", "chmod ", "chown ", "truncate ",
}

// readOnlyPlanPrefixes is the explicit allowlist of commands considered
// read-only enough to auto-allow in plan mode.
var readOnlyPlanPrefixes = []string{
	"ls", "cat", "head", "tail", "grep", "find", "git status", "git log",
	"git diff", "git show", "git branch", "pwd", "echo", "which", "wc",
	"file ", "tree", "go vet", "go list", "npm ls",
}

// splitCommandSegments tokenizes a shell command across the boundaries
// named in spec §9: pipe, semicolon, &&, ||, and command substitution
// ($(...) and backticks). This is new code — no example repo carries a
// shell-grammar parser, and the teacher's own check is a flat substring
// scan with no boundary awareness, which spec §9 explicitly calls
// insufficient (`echo x ; rm -rf /` bypasses a naive prefix check).
func splitCommandSegments(command string) []string {
	var segments []string
	var buf []rune
	depth := 0
	runes := []rune(command)
	flush := func() {
		s := string(buf)
		if len(s) > 0 {
			segments = append(segments, s)
		}
		buf = buf[:0]
	}
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '`':
			buf = append(buf, c)
		case c == '$' && i+1 < len(runes) && runes[i+1] == '(':
			depth++
			buf = append(buf, c)
		case c == '(' && depth > 0:
			depth++
			buf = append(buf, c)
		case c == ')' && depth > 0:
			depth--
			buf = append(buf, c)
		case depth == 0 && c == '|' && i+1 < len(runes) && runes[i+1] == '|':
			flush()
			i++
		case depth == 0 && c == '&' && i+1 < len(runes) && runes[i+1] == '&':
			flush()
			i++
		case depth == 0 && (c == '|' || c == ';'):
			flush()
		default:
			buf = append(buf, c)
		}
	}
	flush()

	// Extract the contents of any command substitutions as additional
	// segments to validate, so denylist/network checks see them too.
	subExpr := regexp.MustCompile("\\$\\(([^()]*)\\)|`([^`]*)`")
	for _, seg := range append([]string{}, segments...) {
		for _, m := range subExpr.FindAllStringSubmatch(seg, -1) {
			if m[1] != "" {
				segments = append(segments, m[1])
			}
			if m[2] != "" {
				segments = append(segments, m[2])
			}
		}
	}
	return segments
}

func trimSegment(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	return s
}
