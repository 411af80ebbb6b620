package panel

import "strings"

const codeFence = "```"

// BalanceFences closes a dangling fenced code block. Streamed responses are
// often cut in the middle of a block; an odd number of fence markers gets one
// closing fence appended on its own line.
func BalanceFences(input string) string {
	if strings.Count(input, codeFence)%2 == 0 {
		return input
	}
	return input + "\n" + codeFence
}
