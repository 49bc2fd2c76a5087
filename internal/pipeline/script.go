package pipeline

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// initScriptAttr marks the injected script so a page is never given two.
const initScriptAttr = "data-lazyimg-init"

// initScriptFn runs in the visitor's browser, so it sticks to ES3.
const initScriptFn = `function (selector, src, preferNativeLazyLoad) {
  var images = document.querySelectorAll(selector);
  var numImages = images.length;
  if (numImages > 0) {
    if (preferNativeLazyLoad && 'loading' in HTMLImageElement.prototype) {
      for (var i = 0; i < numImages; i++) {
        var keys = ['src', 'srcset'];
        for (var j = 0; j < keys.length; j++) {
          if (images[i].hasAttribute('data-' + keys[j])) {
            images[i].setAttribute(keys[j], images[i].getAttribute('data-' + keys[j]));
          }
        }
      }
      return;
    }
    for (var k = 0; k < numImages; k++) {
      if (images[k].hasAttribute('loading')) {
        images[k].removeAttribute('loading');
      }
    }
    var script = document.createElement('script');
    script.async = true;
    script.src = src;
    document.body.appendChild(script);
  }
}`

// initScript returns the bootstrap invocation. Arguments are JSON-encoded,
// which also escapes '<' and '>' so they cannot close the script element.
func initScript(selector, src string, preferNative bool) string {
	// strings and bools always marshal
	args, _ := json.Marshal([]any{selector, src, preferNative})
	inner := strings.TrimSuffix(strings.TrimPrefix(string(args), "["), "]")
	return "(" + initScriptFn + ")(" + inner + ");"
}

// appendInitScript adds the bootstrap script to the end of body unless the
// document already carries one.
func appendInitScript(doc *html.Node, js string) bool {
	body := findElement(doc, atom.Body)
	if body == nil || hasInitScript(doc) {
		return false
	}
	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: initScriptAttr}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: js})
	body.AppendChild(script)
	return true
}

func hasInitScript(n *html.Node) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		if _, ok := getAttr(n, initScriptAttr); ok {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasInitScript(c) {
			return true
		}
	}
	return false
}
