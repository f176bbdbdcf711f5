package epub

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// latexOperators maps MathML operator glyphs to their LaTeX commands.
var latexOperators = map[string]string{
	"→": `\rightarrow`,
	"←": `\leftarrow`,
	"↔": `\leftrightarrow`,
	"×": `\times`,
	"·": `\cdot`,
	"÷": `\div`,
	"±": `\pm`,
	"∓": `\mp`,
	"≤": `\leq`,
	"≥": `\geq`,
	"≠": `\neq`,
	"≈": `\approx`,
	"∞": `\infty`,
	"∫": `\int`,
	"∑": `\sum`,
	"∏": `\prod`,
	"√": `\sqrt`,
	"∂": `\partial`,
	"∇": `\nabla`,
	"∈": `\in`,
	"∉": `\notin`,
	"⊂": `\subset`,
	"⊃": `\supset`,
	"⊆": `\subseteq`,
	"⊇": `\supseteq`,
	"∪": `\cup`,
	"∩": `\cap`,
	"∅": `\emptyset`,
	"∀": `\forall`,
	"∃": `\exists`,
	"¬": `\neg`,
	"∧": `\land`,
	"∨": `\lor`,
	"α": `\alpha`,
	"β": `\beta`,
	"γ": `\gamma`,
	"δ": `\delta`,
	"ε": `\epsilon`,
	"θ": `\theta`,
	"λ": `\lambda`,
	"μ": `\mu`,
	"π": `\pi`,
	"σ": `\sigma`,
	"φ": `\phi`,
	"ω": `\omega`,
	"Δ": `\Delta`,
	"Σ": `\Sigma`,
	"Ω": `\Omega`,
}

// MathToLaTeX renders a MathML subtree as LaTeX so formulas survive the
// translation round trip as plain text. Unknown elements contribute their
// children, which degrades gracefully on presentational wrappers.
func MathToLaTeX(el *etree.Element) string {
	children := el.ChildElements()

	switch el.Tag {
	case "math", "mrow":
		return latexChildren(children)

	case "mi":
		text := el.Text()
		if len([]rune(text)) > 1 {
			return fmt.Sprintf(`\mathrm{%s}`, text)
		}
		return text

	case "mn":
		return el.Text()

	case "mo":
		text := strings.TrimSpace(el.Text())
		if op, ok := latexOperators[text]; ok {
			return op
		}
		return text

	case "mfrac":
		if len(children) >= 2 {
			return fmt.Sprintf(`\frac{%s}{%s}`, MathToLaTeX(children[0]), MathToLaTeX(children[1]))
		}
		return ""

	case "msub":
		if len(children) >= 2 {
			return fmt.Sprintf(`%s_{%s}`, MathToLaTeX(children[0]), MathToLaTeX(children[1]))
		}
		return ""

	case "msup":
		if len(children) >= 2 {
			return fmt.Sprintf(`%s^{%s}`, MathToLaTeX(children[0]), MathToLaTeX(children[1]))
		}
		return ""

	case "msubsup":
		if len(children) >= 3 {
			return fmt.Sprintf(`%s_{%s}^{%s}`,
				MathToLaTeX(children[0]), MathToLaTeX(children[1]), MathToLaTeX(children[2]))
		}
		return ""

	case "msqrt":
		return fmt.Sprintf(`\sqrt{%s}`, latexChildren(children))

	case "mroot":
		if len(children) >= 2 {
			return fmt.Sprintf(`\sqrt[%s]{%s}`, MathToLaTeX(children[1]), MathToLaTeX(children[0]))
		}
		return ""

	case "munder":
		if len(children) >= 2 {
			return fmt.Sprintf(`\underset{%s}{%s}`, MathToLaTeX(children[1]), MathToLaTeX(children[0]))
		}
		return ""

	case "mover":
		if len(children) >= 2 {
			return fmt.Sprintf(`\overset{%s}{%s}`, MathToLaTeX(children[1]), MathToLaTeX(children[0]))
		}
		return ""

	case "munderover":
		if len(children) >= 3 {
			base := MathToLaTeX(children[0])
			under := MathToLaTeX(children[1])
			over := MathToLaTeX(children[2])
			switch strings.TrimSpace(base) {
			case `\sum`, `\int`, `\prod`:
				return fmt.Sprintf(`%s_{%s}^{%s}`, base, under, over)
			}
			return fmt.Sprintf(`\overset{%s}{\underset{%s}{%s}}`, over, under, base)
		}
		return ""

	case "mtext":
		return fmt.Sprintf(`\text{%s}`, el.Text())

	case "mspace":
		return `\,`

	case "mtable":
		var rows []string
		for _, child := range children {
			if child.Tag == "mtr" {
				rows = append(rows, MathToLaTeX(child))
			}
		}
		if len(rows) == 0 {
			return ""
		}
		cols := strconv.Itoa(strings.Count(rows[0], "&") + 1)
		return `\begin{array}{` + cols + "}\n" + strings.Join(rows, "\\\\\n") + "\n" + `\end{array}`

	case "mtr":
		var cells []string
		for _, child := range children {
			if child.Tag == "mtd" {
				cells = append(cells, MathToLaTeX(child))
			}
		}
		return strings.Join(cells, " & ")

	case "mtd":
		return latexChildren(children)

	default:
		return latexChildren(children)
	}
}

func latexChildren(children []*etree.Element) string {
	var b strings.Builder
	for _, child := range children {
		b.WriteString(MathToLaTeX(child))
	}
	return b.String()
}
