package masters

import (
	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

// Fixed roots of the target chart
const (
	RootAssets      = "Application of Funds (Assets)"
	RootLiabilities = "Source of Funds (Liabilities)"
	RootIncome      = "Income"
	RootExpenses    = "Expenses"

	// PrimaryGroup is the parent Tally reports for top-level groups
	PrimaryGroup = "Primary"
)

var roots = []struct {
	name     string
	rootType ledger.RootType
}{
	{RootAssets, ledger.RootAsset},
	{RootLiabilities, ledger.RootLiability},
	{RootIncome, ledger.RootIncome},
	{RootExpenses, ledger.RootExpense},
}

func isRoot(name string) bool {
	for _, r := range roots {
		if r.name == name {
			return true
		}
	}
	return false
}

// AccountSource is a GROUP or LEDGER master as read from the export
type AccountSource struct {
	Name           string
	Parent         string
	DeemedPositive bool
	Revenue        bool
}

// ResolvedParent returns the explicit parent, or the root implied by the
// (ISDEEMEDPOSITIVE, ISREVENUE) flags when the parent is absent or Primary.
func (a AccountSource) ResolvedParent() string {
	if a.Parent != "" && a.Parent != PrimaryGroup {
		return a.Parent
	}
	switch {
	case a.DeemedPositive && !a.Revenue:
		return RootAssets
	case a.DeemedPositive && a.Revenue:
		return RootExpenses
	case !a.DeemedPositive && a.Revenue:
		return RootIncome
	default:
		return RootLiabilities
	}
}

// ReadAccountSources collects GROUP and LEDGER masters in document order
func ReadAccountSources(collection *tallyxml.Node) (groups, ledgers []AccountSource) {
	read := func(n *tallyxml.Node) AccountSource {
		return AccountSource{
			Name:           n.Name(),
			Parent:         n.Text("PARENT"),
			DeemedPositive: n.Text("ISDEEMEDPOSITIVE") == "Yes",
			Revenue:        n.Text("ISREVENUE") == "Yes",
		}
	}
	for _, g := range collection.FindAll("GROUP") {
		if src := read(g); src.Name != "" {
			groups = append(groups, src)
		}
	}
	for _, l := range collection.FindAll("LEDGER") {
		if src := read(l); src.Name != "" {
			ledgers = append(ledgers, src)
		}
	}
	return groups, ledgers
}

// AccountTree is the chart of accounts with party ledgers split out
type AccountTree struct {
	// Nodes in preorder: every parent precedes its children
	Nodes     []ledger.AccountNode
	Customers []string
	Suppliers []string
	// Orphans are masters that cannot reach a root
	Orphans []string
	// Duplicates are names declared more than once with a different parent
	// or kind. The first declaration is kept.
	Duplicates []string
}

// BuildAccountTree turns Tally groups and ledgers into a strict tree rooted
// at the four fixed roots. Ledgers under the debtors or creditors control
// account become parties and are left out of the tree.
func BuildAccountTree(groups, ledgers []AccountSource, settings ledger.Settings) (*AccountTree, error) {
	b := newTreeBuilder(settings)
	for _, g := range groups {
		b.add(g, true)
	}
	for _, l := range ledgers {
		b.add(l, false)
	}

	if err := b.closeAncestors(); err != nil {
		return nil, err
	}

	tree := &AccountTree{Duplicates: b.duplicates}
	b.splitParties(tree)
	b.materialize(tree)
	return tree, nil
}

type treeBuilder struct {
	settings   ledger.Settings
	order      []string
	parents    map[string]string
	children   map[string][]string
	declared   map[string]bool // name -> declared as group
	groups     map[string]bool
	ancestors  map[string]map[string]bool
	excluded   map[string]bool
	duplicates []string
}

func newTreeBuilder(settings ledger.Settings) *treeBuilder {
	return &treeBuilder{
		settings:  settings,
		parents:   make(map[string]string),
		children:  make(map[string][]string),
		declared:  make(map[string]bool),
		groups:    make(map[string]bool),
		ancestors: make(map[string]map[string]bool),
		excluded:  make(map[string]bool),
	}
}

func (b *treeBuilder) isControl(name string) bool {
	return name == b.settings.DebtorsAccount || name == b.settings.CreditorsAccount
}

func (b *treeBuilder) add(src AccountSource, isGroup bool) {
	if isRoot(src.Name) {
		return
	}
	parent := src.ResolvedParent()

	if prev, seen := b.parents[src.Name]; seen {
		if prev != parent || b.declared[src.Name] != isGroup {
			if !contains(b.duplicates, src.Name) {
				b.duplicates = append(b.duplicates, src.Name)
			}
		}
		return
	}

	b.order = append(b.order, src.Name)
	b.parents[src.Name] = parent
	b.children[parent] = append(b.children[parent], src.Name)
	b.declared[src.Name] = isGroup
	if isGroup && !b.isControl(src.Name) {
		b.groups[src.Name] = true
	}
}

// closeAncestors computes the full ancestor set of every master by walking
// parent chains. A chain that revisits a name is a cycle.
func (b *treeBuilder) closeAncestors() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), name)
			return &CycleError{Path: cycle}
		}

		state[name] = visiting
		path = append(path, name)
		set := make(map[string]bool)
		if parent, ok := b.parents[name]; ok {
			set[parent] = true
			if err := visit(parent, path); err != nil {
				return err
			}
			for a := range b.ancestors[parent] {
				set[a] = true
			}
		}
		b.ancestors[name] = set
		state[name] = done
		return nil
	}

	for _, name := range b.order {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// splitParties removes everything beneath a control account from the tree.
// Non-group masters found there are parties.
func (b *treeBuilder) splitParties(tree *AccountTree) {
	for _, name := range b.order {
		anc := b.ancestors[name]
		underCreditors := anc[b.settings.CreditorsAccount]
		underDebtors := anc[b.settings.DebtorsAccount]
		if !underCreditors && !underDebtors {
			continue
		}
		b.excluded[name] = true
		if b.groups[name] {
			continue
		}
		if underDebtors {
			tree.Customers = append(tree.Customers, name)
		}
		if underCreditors {
			tree.Suppliers = append(tree.Suppliers, name)
		}
	}
}

func (b *treeBuilder) materialize(tree *AccountTree) {
	emitted := make(map[string]bool)

	var descend func(parent string, rootType ledger.RootType)
	descend = func(parent string, rootType ledger.RootType) {
		for _, name := range b.children[parent] {
			if b.excluded[name] || emitted[name] {
				continue
			}
			emitted[name] = true

			node := ledger.AccountNode{
				Name:       name,
				ParentName: parent,
				RootType:   rootType,
			}
			switch name {
			case b.settings.DebtorsAccount:
				node.AccountType = ledger.AccountTypeReceivable
			case b.settings.CreditorsAccount:
				node.AccountType = ledger.AccountTypePayable
			}

			// Only groups descend; a group left without children becomes a leaf
			if b.groups[name] && b.hasLiveChild(name, emitted) {
				node.IsGroup = true
				tree.Nodes = append(tree.Nodes, node)
				descend(name, rootType)
				continue
			}
			tree.Nodes = append(tree.Nodes, node)
		}
	}

	for _, r := range roots {
		emitted[r.name] = true
		tree.Nodes = append(tree.Nodes, ledger.AccountNode{Name: r.name, IsGroup: true, RootType: r.rootType})
		descend(r.name, r.rootType)
	}

	for _, name := range b.order {
		if !emitted[name] && !b.excluded[name] {
			tree.Orphans = append(tree.Orphans, name)
		}
	}
}

func (b *treeBuilder) hasLiveChild(name string, emitted map[string]bool) bool {
	for _, c := range b.children[name] {
		if !b.excluded[c] && !emitted[c] {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
