package app

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/log"
)

// parseValue interprets a raw config-file token according to kind: bare
// identifiers for bool/string, decimal literals for int/float, matching
// the "JSON scalars or bare identifiers" value grammar in §6.
func parseValue(kind Kind, raw string) (interface{}, error) {
	switch kind {
	case Bool:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, errors.E(errors.InvalidType, raw)
		}
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.E(errors.InvalidType, raw)
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.E(errors.InvalidType, raw)
		}
		return f, nil
	case String:
		return strings.Trim(raw, `"`), nil
	default:
		return nil, errors.E(errors.InvalidType, raw)
	}
}

func formatValue(p *Parameter) string {
	switch v := p.Value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WriteFile renders c as an INI-like file: one bracketed heading per
// section, one "key = value" line per parameter, preceded by a comment
// line carrying the parameter's help text.
func (c *Configuration) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# %s\n", c.Name)
	for _, s := range c.Sections {
		fmt.Fprintf(w, "\n[%s]\n", s.Name)
		for _, p := range s.Parameters {
			if p.Help != "" {
				fmt.Fprintf(w, "# %s\n", p.Help)
			}
			fmt.Fprintf(w, "%s = %s\n", p.Name, formatValue(p))
		}
	}
	return w.Flush()
}

// ReadFile updates c's parameters from an INI-like file written by
// WriteFile. Unknown sections or keys are warned and ignored; known keys
// with invalid values are warned and skipped, leaving the previous value
// (typically the default) in place.
func (c *Configuration) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			log.Error.Printf("config: malformed line %q, ignoring", line)
			continue
		}
		c.applyLoaded(section, strings.TrimSpace(key), strings.TrimSpace(raw))
	}
	return scanner.Err()
}
