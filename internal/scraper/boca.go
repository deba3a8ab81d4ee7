// Package scraper fetches and parses BOCA-style contest scoreboards. It is a
// thin adapter: everything downstream works on domain.Snapshot values.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scoreboard-bot/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"go.uber.org/fx"
	"golang.org/x/net/html"
)

// ErrNotAScoreboard signals that the page exists but holds no scoreboard,
// typically because the contest has not started or the board was taken down.
var ErrNotAScoreboard = errors.New("page is not a scoreboard")

type BocaScraper struct {
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewBocaScraper(logger zerolog.Logger) *BocaScraper {
	return &BocaScraper{
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

// Fetch downloads and parses the scoreboard at url.
func (s *BocaScraper) Fetch(ctx context.Context, url string) (*domain.Snapshot, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("failed to fetch scoreboard: %w", err)
		}
	} else {
		if err := s.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("failed to fetch scoreboard: %w", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("scoreboard fetch returned status %d", resp.StatusCode())
	}

	snapshot, err := Parse(resp.Body())
	if err != nil {
		return nil, err
	}
	snapshot.FetchedAt = time.Now()

	s.logger.Debug().Str("url", url).Int("teams", len(snapshot.Teams)).Msg("scoreboard fetched")
	return snapshot, nil
}

// Parse extracts team standings from a rendered BOCA scoreboard page. The
// standings table is identified by id "myscoretable"; its header row lists
// the problem names and every following row is one team. Multi-site boards
// repeat teams, the first occurrence wins.
func Parse(page []byte) (*domain.Snapshot, error) {
	root, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse scoreboard html: %w", err)
	}

	table := findByID(root, "myscoretable")
	if table == nil {
		return nil, fmt.Errorf("%w: scoreboard table not found", ErrNotAScoreboard)
	}

	rows := findAllByTag(table, "tr")
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: scoreboard header not found", ErrNotAScoreboard)
	}

	headerCells := findAllByTag(rows[0], "td")
	if len(headerCells) < 4 {
		return nil, fmt.Errorf("%w: malformed scoreboard header", ErrNotAScoreboard)
	}
	problemNames := make([]string, 0, len(headerCells)-4)
	for _, cell := range headerCells[3 : len(headerCells)-1] {
		problemNames = append(problemNames, textContent(cell))
	}

	var teams []domain.TeamStanding
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		cells := findAllByTag(row, "td")
		if len(cells) < 4 {
			continue
		}

		name := textContent(cells[2])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		place, err := strconv.Atoi(textContent(cells[0]))
		if err != nil {
			continue
		}

		totalSolved, totalPenalty, err := parseTotals(textContent(cells[len(cells)-1]))
		if err != nil {
			continue
		}

		problems := make([]domain.ProblemResult, 0, len(problemNames))
		for idx, cell := range cells[3 : len(cells)-1] {
			if idx >= len(problemNames) {
				break
			}
			problems = append(problems, parseProblemCell(problemNames[idx], cell))
		}

		teams = append(teams, domain.TeamStanding{
			Name:         name,
			Place:        place,
			UserSite:     textContent(cells[1]),
			TotalSolved:  totalSolved,
			TotalPenalty: totalPenalty,
			Problems:     problems,
		})
	}

	domain.SortTeams(teams)
	return &domain.Snapshot{Teams: teams}, nil
}

// parseTotals reads the summary cell, e.g. "3 (210)".
func parseTotals(text string) (solved, penalty int, err error) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed totals cell %q", text)
	}
	solved, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	penalty, err = strconv.Atoi(strings.Trim(parts[1], "()"))
	if err != nil {
		return 0, 0, err
	}
	return solved, penalty, nil
}

// parseProblemCell reads one "tries/minutes" cell. A dash for minutes means
// attempted but unsolved; an absent font element means never attempted.
func parseProblemCell(name string, cell *html.Node) domain.ProblemResult {
	result := domain.ProblemResult{Name: name}

	font := findByTag(cell, "font")
	if font == nil {
		return result
	}

	parts := strings.SplitN(textContent(font), "/", 2)
	if len(parts) != 2 {
		return result
	}
	if tries, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		result.Tries = tries
	}
	penalty := strings.TrimSpace(parts[1])
	if penalty != "-" {
		if solvedAt, err := strconv.Atoi(penalty); err == nil {
			result.SolvedAt = solvedAt
			result.IsSolved = true
		}
	}
	return result
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findByTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAllByTag(n *html.Node, tag string) []*html.Node {
	var found []*html.Node
	if n.Type == html.ElementNode && n.Data == tag {
		return []*html.Node{n}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		found = append(found, findAllByTag(child, tag)...)
	}
	return found
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

var Module = fx.Provide(NewBocaScraper)
