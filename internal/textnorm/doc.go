// Package textnorm turns fetched HTML into clean, comparable plain text.
//
// Normalize runs a fixed sequence of steps:
//
//  1. parse the markup tolerantly and drop head, title, script, style,
//     template, noscript and comments
//  2. join the remaining text nodes with single spaces
//  3. strip literal inline-formatting tags such as "<b>" that survived as text
//  4. drop every non-ASCII code point (optionally after NFKD folding)
//  5. collapse horizontal whitespace and pipes to one space, and line breaks
//     to one newline
//  6. remove balanced {...} spans, which are usually script or config blobs
//     that leaked into the visible text
//  7. trim
//
// The sequence is repeated until the output stops changing, which makes
// Normalize idempotent even for pages whose text contains escaped markup.
package textnorm
