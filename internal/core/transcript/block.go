package transcript

// Kind identifies a block variant
type Kind int

const (
	KindText Kind = iota
	KindToolUse
	KindToolResult
	KindThinking
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindToolUse:
		return "tool_use"
	case KindToolResult:
		return "tool_result"
	case KindThinking:
		return "thinking"
	default:
		return "unknown"
	}
}

// Block is one renderable piece of a message. The set of implementations is
// closed: TextBlock, ToolUseBlock, ToolResultBlock and ThinkingBlock.
type Block interface {
	Kind() Kind
	// Content is the block's rendered text
	Content() string
	isBlock()
}

// TextBlock is plain prose
type TextBlock struct {
	Text string
}

// ToolUseBlock is a tool invocation. Input is the parameters as indented JSON.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input string
}

// ToolResultBlock is a tool's output fed back to the model
type ToolResultBlock struct {
	ToolUseID string
	Output    string
	IsError   bool
}

// ThinkingBlock is model reasoning
type ThinkingBlock struct {
	Text string
}

func (TextBlock) Kind() Kind       { return KindText }
func (ToolUseBlock) Kind() Kind    { return KindToolUse }
func (ToolResultBlock) Kind() Kind { return KindToolResult }
func (ThinkingBlock) Kind() Kind   { return KindThinking }

func (b TextBlock) Content() string       { return b.Text }
func (b ToolUseBlock) Content() string    { return b.Input }
func (b ToolResultBlock) Content() string { return b.Output }
func (b ThinkingBlock) Content() string   { return b.Text }

func (TextBlock) isBlock()       {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}
func (ThinkingBlock) isBlock()   {}
