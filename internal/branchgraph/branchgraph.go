// Package branchgraph renders a Graphviz view of the log repository's
// master/live commit lineage, adapted from the teacher's git-fast-export
// commit grapher to instead walk real commits via internal/gitop (spec
// §3's diagnostic supplement, not part of the core logger/publisher
// pipeline).
package branchgraph

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"

	"github.com/rcowham/irclogd/internal/gitop"
)

// commit is one parsed `git log` entry: its hash, the branch ref(s) it
// carries (from %D), and its parent hashes (from %P).
type commit struct {
	hash    string
	subject string
	refs    []string
	parents []string
	node    dot.Node
	hasNode bool
}

// Graph renders the repository's commit DAG across master and live.
type Graph struct {
	git *gitop.Git
}

// New returns a Graph reading from g's working tree.
func New(g *gitop.Git) *Graph {
	return &Graph{git: g}
}

const logFormat = "%H\x1f%P\x1f%D\x1f%s"

// collect runs git log across both branches and parses each entry. A
// commit reachable from both branches is kept once; a repeated hash is
// skipped.
func (gr *Graph) collect() (map[string]*commit, []string, error) {
	out, err := gr.git.CaptureString("log", "--format="+logFormat, "origin/master", "origin/live")
	if err != nil {
		return nil, nil, fmt.Errorf("branchgraph: git log: %w", err)
	}

	commits := make(map[string]*commit)
	order := make([]string, 0)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			return nil, nil, fmt.Errorf("branchgraph: malformed git log line %q", line)
		}
		hash, parentStr, refStr, subject := fields[0], fields[1], fields[2], fields[3]
		if _, ok := commits[hash]; ok {
			continue
		}
		c := &commit{hash: hash, subject: subject}
		if parentStr != "" {
			c.parents = strings.Split(parentStr, " ")
		}
		if refStr != "" {
			for _, r := range strings.Split(refStr, ", ") {
				c.refs = append(c.refs, strings.TrimSpace(r))
			}
		}
		commits[hash] = c
		order = append(order, hash)
	}
	return commits, order, nil
}

// nodeFor returns gr's dot.Node for c, creating it (with a label built
// from its short hash, subject, and any branch refs) on first use.
func nodeFor(g *dot.Graph, c *commit) dot.Node {
	if c.hasNode {
		return c.node
	}
	label := fmt.Sprintf("%.8s: %s", c.hash, c.subject)
	if len(c.refs) > 0 {
		label = fmt.Sprintf("%s\\n(%s)", label, strings.Join(c.refs, ", "))
	}
	c.node = g.Node(label)
	c.hasNode = true
	return c.node
}

// Render builds the dot-format graph text for the repository's commit
// history across master and live.
func (gr *Graph) Render() (string, error) {
	commits, order, err := gr.collect()
	if err != nil {
		return "", err
	}

	g := dot.NewGraph(dot.Directed)
	for _, hash := range order {
		c := commits[hash]
		nodeFor(g, c)
		for _, parentHash := range c.parents {
			parent, ok := commits[parentHash]
			if !ok {
				continue // parent outside the two branches' shared history
			}
			g.Edge(nodeFor(g, parent), nodeFor(g, c))
		}
	}
	return g.String(), nil
}
