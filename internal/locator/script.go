// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package locator

// Scripts evaluated inside a frame by the browser host. Each is a function
// expression; binary payloads are returned base64-encoded.
const (
	// ScriptViewerDetected returns whether a PDF.js viewer application exists.
	ScriptViewerDetected = `() => typeof window.PDFViewerApplication !== 'undefined'`

	// ScriptViewerReady returns whether the viewer has a loaded document.
	ScriptViewerReady = `() => !!(window.PDFViewerApplication && window.PDFViewerApplication.pdfDocument)`

	// ScriptViewerData resolves to the viewer document's bytes in base64.
	ScriptViewerData = `async () => {
  const data = await window.PDFViewerApplication.pdfDocument.getData();
  ` + scriptToBase64 + `
  return toBase64(data);
}`

	// ScriptFetchSelf re-fetches the frame's own location with credentials
	// and resolves to {status, contentType, body}.
	ScriptFetchSelf = `async () => {
  const res = await fetch(window.location.href, { credentials: 'include', cache: 'no-cache' });
  const buf = new Uint8Array(await res.arrayBuffer());
  ` + scriptToBase64 + `
  return { status: res.status, contentType: res.headers.get('content-type') || '', body: toBase64(buf) };
}`

	// ScriptNotify dispatches a CustomEvent carrying its argument on window.
	ScriptNotify = `(name, detail) => { window.dispatchEvent(new CustomEvent(name, { detail })); return true; }`
)

const scriptToBase64 = `const toBase64 = (bytes) => {
    let s = '';
    for (let i = 0; i < bytes.length; i += 0x8000) {
      s += String.fromCharCode.apply(null, bytes.subarray(i, i + 0x8000));
    }
    return btoa(s);
  };`
