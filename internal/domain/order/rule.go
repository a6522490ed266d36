package order

import (
	"strings"

	"github.com/xenking/taberna/internal/domain/product"
)

// CommentRule decides which products oblige the customer to leave a comment.
//
// The bar serves a free tapa with every beer, and the kitchen needs to know
// which one; the comment carries that choice.
type CommentRule interface {
	RequiresComment(p product.Product) bool
}

// CommentRuleFunc adapts a function to CommentRule.
type CommentRuleFunc func(p product.Product) bool

// RequiresComment calls f(p).
func (f CommentRuleFunc) RequiresComment(p product.Product) bool { return f(p) }

// KeywordRule matches products whose name contains any of the keywords,
// case-insensitively. Matching on names is brittle: a dedicated CMS flag or
// category would be sturdier, and can be plugged in through CommentRule.
type KeywordRule []string

// RequiresComment reports whether the product name contains a keyword.
func (k KeywordRule) RequiresComment(p product.Product) bool {
	name := strings.ToLower(p.Name)
	for _, kw := range k {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// NoCommentRule never requires a comment.
var NoCommentRule CommentRule = CommentRuleFunc(func(product.Product) bool { return false })
