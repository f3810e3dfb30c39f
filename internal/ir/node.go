package ir

// Node is one element of the circuit tree built from the AST walk: a
// GateNode, a BlockNode or a LoopNode.
type Node interface {
	node()
}

// GateNode is a resolved, duration-padded gate slice.
type GateNode struct {
	Slice *GateSlice
}

// BlockNode groups children. A parallel block holds a single GateNode:
// its children are merged and padded during construction.
type BlockNode struct {
	Children []Node
	Parallel bool
}

// LoopNode repeats Body. Loops stay folded in the tree; only the bypass
// path unrolls them.
type LoopNode struct {
	Body    []Node
	Repeats int
}

func (GateNode) node()  {}
func (BlockNode) node() {}
func (LoopNode) node()  {}

// Unroll flattens the tree into the executed order of gate slices,
// materializing every loop repetition.
func Unroll(nodes []Node) []*GateSlice {
	var out []*GateSlice
	for _, n := range nodes {
		switch v := n.(type) {
		case GateNode:
			out = append(out, v.Slice)
		case BlockNode:
			out = append(out, Unroll(v.Children)...)
		case LoopNode:
			body := Unroll(v.Body)
			for range v.Repeats {
				out = append(out, body...)
			}
		}
	}
	return out
}

// ApplyDelays returns a copy of the tree in which every triggered segment
// carries its channel's delay. The input tree is left untouched.
func ApplyDelays(nodes []Node, delay func(channel int) int64) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		switch v := n.(type) {
		case GateNode:
			out[i] = GateNode{Slice: v.Slice.WithDelays(delay)}
		case BlockNode:
			out[i] = BlockNode{Children: ApplyDelays(v.Children, delay), Parallel: v.Parallel}
		case LoopNode:
			out[i] = LoopNode{Body: ApplyDelays(v.Body, delay), Repeats: v.Repeats}
		}
	}
	return out
}

// Streams concatenates the slices per channel: the result holds, for every
// channel, its segments in execution order.
func Streams(slices []*GateSlice, channels int) [][]PulseSegment {
	out := make([][]PulseSegment, channels)
	for _, s := range slices {
		for ch := range min(channels, s.Channels()) {
			out[ch] = append(out[ch], s.Segments(ch)...)
		}
	}
	return out
}
