package translate

// Specification of how transformed text is folded back into the document.
// ENUM(replace, appendText, appendBlock)
type SubmitKind int
