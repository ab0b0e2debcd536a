// Package toon implements TOON (Token-Oriented Object Notation) encoding of run reports.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/abilib/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a run Report into TOON format.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("version: %s", encodeValue(r.Version)))
	ok, failed := r.Counts()
	parts = append(parts, fmt.Sprintf("ok: %d", ok))
	parts = append(parts, fmt.Sprintf("failed: %d", failed))

	var pairRows [][]string
	for i := range r.Pairs {
		p := &r.Pairs[i]
		pairRows = append(pairRows, []string{
			p.Name,
			p.Profile,
			p.Language,
			string(p.Status),
			fmt.Sprintf("%d", p.Symbols),
			p.HeaderPath,
			p.SourcePath,
			p.Hash,
			p.Category,
		})
	}
	parts = append(parts, formatTabular("pairs",
		[]string{"name", "profile", "language", "status", "symbols", "header", "source", "hash", "category"}, pairRows))

	var omitRows [][]string
	for i := range r.Pairs {
		p := &r.Pairs[i]
		for j := range p.Omissions {
			o := &p.Omissions[j]
			omitRows = append(omitRows, []string{p.Name, p.Profile, o.Symbol, o.Location, o.Reason})
		}
	}
	parts = append(parts, formatTabular("omissions", []string{"pair", "profile", "symbol", "location", "reason"}, omitRows))

	var diagRows [][]string
	for i := range r.Pairs {
		p := &r.Pairs[i]
		if p.Diagnostics == "" {
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(p.Diagnostics, "\n"), "\n") {
			diagRows = append(diagRows, []string{p.Name, p.Profile, line})
		}
	}
	if len(diagRows) > 0 {
		parts = append(parts, formatTabular("diagnostics", []string{"pair", "profile", "message"}, diagRows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
