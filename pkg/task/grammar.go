package task

import "fmt"

// builtinJSONGrammar is a GBNF grammar constraining output to well-formed
// JSON. It is available under the name "json" on every model, even one
// whose spec defines no grammars of its own.
const builtinJSONGrammar = `root   ::= object
object ::= "{" ws (member ("," ws member)*)? ws "}"
member ::= string ws ":" ws value
array  ::= "[" ws (value ("," ws value)*)? ws "]"
value  ::= object | array | string | number | "true" | "false" | "null"
string ::= "\"" ([^"\\] | "\\" .)* "\""
number ::= "-"? [0-9]+ ("." [0-9]+)? ([eE] [+-]? [0-9]+)?
ws     ::= [ \t\n\r]*`

// ResolveGrammar resolves a request's named grammar against a model's
// configured grammar set. Name "" means unconstrained generation. Name
// "json" falls back to the built-in grammar when grammars defines no
// override; any other unknown name is an error.
func ResolveGrammar(grammars map[string]string, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if g, ok := grammars[name]; ok {
		return g, nil
	}
	if name == "json" {
		return builtinJSONGrammar, nil
	}
	return "", fmt.Errorf("grammar %q is not defined for this model", name)
}
