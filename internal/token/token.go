// Package token defines the flat token stream consumed by the document
// assembly engine. Tokens are produced once by a tokenizer and never
// mutated afterwards.
package token

import "fmt"

// Kind is the closed set of token kinds.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindHeadingOpen
	KindHeadingClose
	KindParagraphOpen
	KindParagraphClose
	KindBulletListOpen
	KindBulletListClose
	KindOrderedListOpen
	KindOrderedListClose
	KindListItemOpen
	KindListItemClose
	KindBlockquoteOpen
	KindBlockquoteClose

	KindTableOpen
	KindTableClose
	KindTheadOpen
	KindTheadClose
	KindTbodyOpen
	KindTbodyClose
	KindTrOpen
	KindTrClose
	KindThOpen
	KindThClose
	KindTdOpen
	KindTdClose

	KindInline
	KindText
	KindSoftbreak
	KindHardbreak
	KindEmOpen
	KindEmClose
	KindStrongOpen
	KindStrongClose
	KindStrikeOpen
	KindStrikeClose
	KindCodeInline
	KindLinkOpen
	KindLinkClose
	KindImage
	KindHTMLInline

	KindFence
	KindCodeBlock
	KindHTMLBlock
	KindHR

	// KindCount is the number of kinds. It is not a valid kind.
	KindCount
)

var kindNames = [KindCount]string{
	KindInvalid:          "invalid",
	KindHeadingOpen:      "heading_open",
	KindHeadingClose:     "heading_close",
	KindParagraphOpen:    "paragraph_open",
	KindParagraphClose:   "paragraph_close",
	KindBulletListOpen:   "bullet_list_open",
	KindBulletListClose:  "bullet_list_close",
	KindOrderedListOpen:  "ordered_list_open",
	KindOrderedListClose: "ordered_list_close",
	KindListItemOpen:     "list_item_open",
	KindListItemClose:    "list_item_close",
	KindBlockquoteOpen:   "blockquote_open",
	KindBlockquoteClose:  "blockquote_close",
	KindTableOpen:        "table_open",
	KindTableClose:       "table_close",
	KindTheadOpen:        "thead_open",
	KindTheadClose:       "thead_close",
	KindTbodyOpen:        "tbody_open",
	KindTbodyClose:       "tbody_close",
	KindTrOpen:           "tr_open",
	KindTrClose:          "tr_close",
	KindThOpen:           "th_open",
	KindThClose:          "th_close",
	KindTdOpen:           "td_open",
	KindTdClose:          "td_close",
	KindInline:           "inline",
	KindText:             "text",
	KindSoftbreak:        "softbreak",
	KindHardbreak:        "hardbreak",
	KindEmOpen:           "em_open",
	KindEmClose:          "em_close",
	KindStrongOpen:       "strong_open",
	KindStrongClose:      "strong_close",
	KindStrikeOpen:       "s_open",
	KindStrikeClose:      "s_close",
	KindCodeInline:       "code_inline",
	KindLinkOpen:         "link_open",
	KindLinkClose:        "link_close",
	KindImage:            "image",
	KindHTMLInline:       "html_inline",
	KindFence:            "fence",
	KindCodeBlock:        "code_block",
	KindHTMLBlock:        "html_block",
	KindHR:               "hr",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, KindCount)
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind looks up a kind by its stream name, e.g. "bullet_list_open".
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

func (k Kind) MarshalText() ([]byte, error) {
	if k >= KindCount {
		return nil, fmt.Errorf("token: invalid kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := kindByName[string(b)]
	if !ok {
		return fmt.Errorf("token: unknown kind %q", b)
	}
	*k = v
	return nil
}

// Align is a table column alignment declared on the header separator.
type Align uint8

const (
	AlignNone Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	}
	return ""
}

func (a Align) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Align) UnmarshalText(b []byte) error {
	switch string(b) {
	case "left":
		*a = AlignLeft
	case "center":
		*a = AlignCenter
	case "right":
		*a = AlignRight
	case "":
		*a = AlignNone
	default:
		return fmt.Errorf("token: unknown alignment %q", b)
	}
	return nil
}

// Token is one structural or textual unit of the stream. Only the payload
// matching Kind is set; the others stay nil.
type Token struct {
	Kind     Kind    `json:"kind"`
	Tag      string  `json:"tag,omitempty"`
	Content  string  `json:"content,omitempty"`
	Markup   string  `json:"markup,omitempty"`
	Children []Token `json:"children,omitempty"`

	Link  *Link  `json:"link,omitempty"`
	Image *Image `json:"image,omitempty"`
	List  *List  `json:"list,omitempty"`
	Cell  *Cell  `json:"cell,omitempty"`
	Table *Table `json:"table,omitempty"`
	Fence *Fence `json:"fence,omitempty"`
}

// Link is the payload of KindLinkOpen.
type Link struct {
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
}

// Image is the payload of KindImage.
type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// List is the payload of list and list item opens. Indent is measured in
// markup indent units; two units make one nesting level.
type List struct {
	Ordered bool `json:"ordered,omitempty"`
	Indent  int  `json:"indent,omitempty"`
	Start   int  `json:"start,omitempty"`
}

// Cell is the payload of KindThOpen and KindTdOpen.
type Cell struct {
	Align Align `json:"align,omitempty"`
}

// Table is the payload of KindTableOpen.
type Table struct {
	Align []Align `json:"align,omitempty"`
}

// Fence is the payload of KindFence.
type Fence struct {
	Lang string `json:"lang,omitempty"`
}

// Open returns a bare opening token of kind k.
func Open(k Kind) Token { return Token{Kind: k} }

// Close returns a bare closing token of kind k.
func Close(k Kind) Token { return Token{Kind: k} }

// Text returns a plain text token.
func Text(s string) Token { return Token{Kind: KindText, Content: s} }

// Inline returns an inline container holding children.
func Inline(content string, children ...Token) Token {
	return Token{Kind: KindInline, Content: content, Children: children}
}

// Heading returns heading open, inline and close tokens for level n.
func Heading(n int, children ...Token) []Token {
	tag := fmt.Sprintf("h%d", n)
	return []Token{
		{Kind: KindHeadingOpen, Tag: tag},
		Inline(joinText(children), children...),
		{Kind: KindHeadingClose, Tag: tag},
	}
}

// Paragraph returns paragraph open, inline and close tokens.
func Paragraph(children ...Token) []Token {
	return []Token{
		{Kind: KindParagraphOpen, Tag: "p"},
		Inline(joinText(children), children...),
		{Kind: KindParagraphClose, Tag: "p"},
	}
}

// Item returns a list item whose first paragraph holds children.
// indent is in markup units.
func Item(ordered bool, indent int, children ...Token) []Token {
	toks := []Token{{Kind: KindListItemOpen, Tag: "li", List: &List{Ordered: ordered, Indent: indent}}}
	if len(children) > 0 {
		toks = append(toks, Paragraph(children...)...)
	}
	return toks
}

func joinText(children []Token) string {
	var s string
	for _, c := range children {
		switch c.Kind {
		case KindText, KindCodeInline:
			s += c.Content
		case KindSoftbreak:
			s += "\n"
		default:
			if len(c.Children) > 0 {
				s += joinText(c.Children)
			}
		}
	}
	return s
}
