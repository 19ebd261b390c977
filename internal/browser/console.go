package browser

import "strings"

// ignoredConsole drops noise every page emits under automation.
func ignoredConsole(msg string) bool {
	return strings.Contains(msg, "favicon") || strings.Contains(msg, "Content Security Policy")
}

// markAttr tags the element findRoleJS picked so a native click can target it.
const markAttr = "data-logcheck-target"

// visibleJS is shared by the page functions below. An element counts as visible when it
// has a non-empty box and is not visibility:hidden, the rule getByText and getByRole use.
const visibleJS = `const skip = new Set(['HEAD', 'SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'TITLE']);
const visible = (el) => {
  if (!el || !el.isConnected) return false;
  const style = getComputedStyle(el);
  if (style.visibility === 'hidden' || style.visibility === 'collapse') return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
};
const norm = (s) => s.replace(/\s+/g, ' ').trim().toLowerCase();`

// findTextJS resolves once any visible element's own text contains the needle,
// case-insensitively and with whitespace collapsed.
const findTextJS = `(text) => {
` + visibleJS + `
  const needle = norm(text);
  const walker = document.createTreeWalker(document.body || document.documentElement, NodeFilter.SHOW_TEXT);
  for (let n = walker.nextNode(); n; n = walker.nextNode()) {
    const el = n.parentElement;
    if (!el || el.closest('head, script, style, noscript, template, title')) continue;
    if (skip.has(el.tagName)) continue;
    if (norm(n.textContent).includes(needle) && visible(el)) return true;
  }
  return false;
}`

// findRoleJS marks the first visible element matching the selector.
const findRoleJS = `(selector, attr) => {
` + visibleJS + `
  document.querySelectorAll('[' + attr + ']').forEach((el) => el.removeAttribute(attr));
  for (const el of document.querySelectorAll(selector)) {
    if (skip.has(el.tagName) || !visible(el)) continue;
    el.setAttribute(attr, '');
    return true;
  }
  return false;
}`

// roleSelector selects native elements for an ARIA role plus explicit role attributes.
func roleSelector(role string) string {
	native := map[string]string{
		"button":   "button, input[type=button], input[type=submit], input[type=reset]",
		"link":     "a[href]",
		"checkbox": "input[type=checkbox]",
		"heading":  "h1, h2, h3, h4, h5, h6",
	}
	sel := `[role="` + role + `"]`
	if n, ok := native[role]; ok {
		return n + ", " + sel
	}
	return sel
}
