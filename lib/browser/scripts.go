package browser

import (
	"encoding/json"
	"fmt"
)

// jsString quotes s as a javascript string literal.
func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// returns "ok", "missing" (no element) or "nooption".
func selectByTextScript(selector, text string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return "missing";
	const want = %s;
	for (const opt of el.options) {
		if (opt.text.trim() === want) {
			el.value = opt.value;
			el.dispatchEvent(new Event("change", { bubbles: true }));
			return "ok";
		}
	}
	return "nooption";
})()`, jsString(selector), jsString(text))
}

func setValueScript(selector, value string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.value = %s;
	for (const name of ["input", "change", "keyup"]) {
		el.dispatchEvent(new Event(name, { bubbles: true }));
	}
	return true;
})()`, jsString(selector), jsString(value))
}

func countScript(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
}

func clickableScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el || el.disabled) return false;
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	return rect.width > 0 && rect.height > 0 && style.visibility !== "hidden" && style.display !== "none";
})()`, jsString(selector))
}

// ClickScript clicks an element through the DOM rather than dispatching
// mouse events, which works for controls obscured by overlays.
func ClickScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.click();
	return true;
})()`, jsString(selector))
}
