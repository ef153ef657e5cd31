package object

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

var timeZoneLength = 5

// Signature is a commit or tag author/committer line: name, email, and a
// timestamp with its UTC offset, e.g.
//
//	Taylor Blau <ttaylorr@github.com> 1494258422 -0600
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

func (s *Signature) decodeTimeAndTimeZone(b []byte) {
	space := bytes.IndexByte(b, ' ')
	if space == -1 {
		space = len(b)
	}

	ts, err := strconv.ParseInt(string(b[:space]), 10, 64)
	if err != nil {
		return
	}
	s.When = time.Unix(ts, 0).In(time.UTC)

	tzStart := space + 1
	if tzStart >= len(b) || tzStart+timeZoneLength > len(b) {
		return
	}

	timezone := string(b[tzStart : tzStart+timeZoneLength])
	tzhours, err1 := strconv.ParseInt(timezone[0:3], 10, 64)
	tzmins, err2 := strconv.ParseInt(timezone[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	if tzhours < 0 {
		tzmins *= -1
	}
	s.When = s.When.In(time.FixedZone("", int(tzhours*60*60+tzmins*60)))
}

// Decode parses a signature line with the leading "author "/"committer "
// token already stripped.
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 || close < open {
		s.Name = string(bytes.Trim(b, " "))
		return
	}

	s.Name = string(bytes.Trim(b[:open], " "))
	s.Email = string(b[open+1 : close])

	if hasTime := close+2 < len(b); hasTime {
		s.decodeTimeAndTimeZone(b[close+2:])
	}
}

const formatTimeZoneOnly = "-0700"

// String formats the signature the way git writes it in commit and tag
// object bodies.
func (s *Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format(formatTimeZoneOnly))
}
