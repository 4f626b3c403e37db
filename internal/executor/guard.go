package executor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotReadOnly is returned by CheckReadOnly for statements that may write.
var ErrNotReadOnly = errors.New("only read-only statements are allowed")

// readOnlyLeaders are the statement keywords accepted in read-only mode.
var readOnlyLeaders = map[string]bool{
	"SELECT": true, "WITH": true, "EXPLAIN": true, "VALUES": true,
}

// writeKeywords may not appear anywhere outside literals in read-only mode.
// REPLACE is absent because it is also a scalar function.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "ATTACH": true, "DETACH": true,
	"VACUUM": true, "REINDEX": true, "PRAGMA": true,
}

// CheckReadOnly rejects anything other than a single SELECT, WITH, EXPLAIN
// or VALUES statement. Keywords inside string literals, quoted identifiers
// and comments are ignored. A trailing semicolon is allowed.
func CheckReadOnly(sql string) error {
	words, statements := scanWords(sql)
	if len(words) == 0 {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}
	if statements > 1 {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if !readOnlyLeaders[words[0]] {
		return fmt.Errorf("%w: %s", ErrNotReadOnly, words[0])
	}
	for _, w := range words[1:] {
		if writeKeywords[w] {
			return fmt.Errorf("%w: %s", ErrNotReadOnly, w)
		}
	}
	return nil
}

// scanWords returns the upper-cased bare words of sql outside literals and
// comments, plus the number of non-empty statements separated by ';'.
func scanWords(sql string) ([]string, int) {
	var (
		words      []string
		statements int
		pending    bool
		word       strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			flush()
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			flush()
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			flush()
			pending = true
			closer := c
			if c == '[' {
				closer = ']'
			}
			i++
			for i < len(sql) {
				if sql[i] == closer {
					// Doubled quote is an escaped quote.
					if closer != ']' && i+1 < len(sql) && sql[i+1] == closer {
						i += 2
						continue
					}
					break
				}
				i++
			}
		case c == ';':
			flush()
			if pending {
				statements++
				pending = false
			}
		case isWordByte(c):
			word.WriteByte(c)
			pending = true
		default:
			flush()
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				pending = true
			}
		}
	}
	flush()
	if pending {
		statements++
	}
	return words, statements
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
