package accessibility

// clipboardOnly is used where no accessibility backend is available. It grants
// permission but exposes an empty tree, so the poller never observes a
// selection and manual capture falls through to the clipboard.
type clipboardOnly struct{}

func (clipboardOnly) HasPermission() bool                { return true }
func (clipboardOnly) Focused() (Node, bool)              { return nil, false }
func (clipboardOnly) Windows() []Node                    { return nil }
func (clipboardOnly) SelectedTextOf(Node) (string, bool) { return "", false }
func (clipboardOnly) ValueOf(Node) (string, bool)        { return "", false }
func (clipboardOnly) ChildrenOf(Node) []Node             { return nil }

// ClipboardOnly returns a Source with no UI tree.
func ClipboardOnly() Source { return clipboardOnly{} }
