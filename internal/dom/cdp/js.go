// File: internal/dom/cdp/js.go
// The functions below are injected with Runtime.callFunctionOn, bound to the
// node or scope root they operate on. They are written against the element's
// own realm (ownerDocument.defaultView) so handles inside same-origin frames
// behave the same as top-level ones. Coordinates are always reported in
// top-level viewport space: boxes climb the frame chain on the way out,
// hit tests descend it on the way in, so the input domain and elementFromPoint
// agree on what a point means.
package cdp

// mutationBootstrap installs a monotonically increasing mutation counter on
// every new document of the target. attachShadow is wrapped so author shadow
// roots, open or closed, feed the same counter; a document-level observer
// cannot see into them.
const mutationBootstrap = `(() => {
	if (window.__autoflowMutations !== undefined) return;
	let count = 0;
	Object.defineProperty(window, '__autoflowMutations', {get: () => count});
	const opts = {subtree: true, childList: true, attributes: true, characterData: true};
	const observer = new MutationObserver(records => { count += records.length; });
	observer.observe(document, opts);
	const attach = Element.prototype.attachShadow;
	if (attach) {
		Element.prototype.attachShadow = function(init) {
			const root = attach.call(this, init);
			try { observer.observe(root, opts); } catch (e) {}
			return root;
		};
	}
})();`

// jsMutationCount reads the counter of the scope's window. A document the
// bootstrap never reached reports a constant zero, which a quiescence wait
// treats as an already quiet page.
const jsMutationCount = `function() {
	const doc = this.nodeType === 9 ? this : (this.ownerDocument || document);
	const win = doc.defaultView;
	return Math.floor((win && win.__autoflowMutations) || 0);
}`

// jsSnapshot reads one element's observable state in a single round trip.
// The shape mirrors the dom.Snapshot JSON contract exactly.
const jsSnapshot = `function() {
	const el = this;
	const doc = el.ownerDocument;
	const win = doc.defaultView || window;
	const cs = win.getComputedStyle(el);

	const attrs = {};
	for (const a of el.attributes) attrs[a.name] = a.value;

	const r = el.getBoundingClientRect();
	let x = r.x, y = r.y;
	try {
		let w = win;
		while (w !== w.parent && w.frameElement) {
			const fr = w.frameElement.getBoundingClientRect();
			x += fr.x + w.frameElement.clientLeft;
			y += fr.y + w.frameElement.clientTop;
			w = w.parent;
		}
	} catch (e) {}

	let opacity = 1;
	for (let n = el; n && n.nodeType === 1; ) {
		const o = parseFloat(win.getComputedStyle(n).opacity);
		if (!isNaN(o)) opacity *= o;
		const root = n.getRootNode();
		n = n.parentElement || (root && root.host ? root.host : null);
	}

	let text = el.innerText !== undefined ? el.innerText : el.textContent;
	text = (text || '').replace(/\s+/g, ' ').trim();
	if (text.length > 2048) text = text.slice(0, 2048);

	let value = '';
	if ('value' in el && el.value !== undefined && el.value !== null) {
		value = String(el.value);
	} else if (el.isContentEditable) {
		value = (el.textContent || '').replace(/\s+/g, ' ').trim();
	}

	let siblingIndex = 0, siblingCount = 1;
	if (el.parentElement) {
		siblingCount = 0;
		for (const sib of el.parentElement.children) {
			if (sib.tagName !== el.tagName) continue;
			if (sib === el) siblingIndex = siblingCount;
			siblingCount++;
		}
	}

	return {
		tag: el.tagName.toLowerCase(),
		id: el.id || '',
		attrs: attrs,
		text: text,
		value: value,
		rect: {x: x, y: y, width: r.width, height: r.height},
		display: cs.display,
		visibility: cs.visibility,
		opacity: opacity,
		pointerEvents: cs.pointerEvents,
		disabled: el.disabled === true || (el.matches ? el.matches(':disabled') : false),
		readOnly: el.readOnly === true || el.hasAttribute('readonly'),
		checked: el.checked === true,
		focused: el.getRootNode().activeElement === el,
		contentEditable: el.isContentEditable === true,
		childCount: el.childElementCount,
		siblingIndex: siblingIndex,
		siblingCount: siblingCount
	};
}`

// jsQueryAll runs against a document, shadow root or element.
const jsQueryAll = `function(sel) {
	return Array.from(this.querySelectorAll(sel));
}`

// jsQueryXPath evaluates relative to the scope root. XPath cannot address
// nodes across shadow boundaries; inside a shadow scope an expression that
// the engine rejects simply yields no matches, the resolver's path stage
// treats that as a miss and moves on.
const jsQueryXPath = `function(expr) {
	const doc = this.nodeType === 9 ? this : (this.ownerDocument || document);
	const out = [];
	try {
		const res = doc.evaluate(expr, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (let i = 0; i < res.snapshotLength; i++) {
			const n = res.snapshotItem(i);
			if (n && n.nodeType === 1) out.push(n);
		}
	} catch (e) {}
	return out;
}`

// jsElementFromPoint hit-tests at top-level viewport coordinates, translating
// into the scope's local frame space first.
const jsElementFromPoint = `function(x, y) {
	const root = this.nodeType === 9 || this.nodeType === 11 ? this : document;
	const doc = root.nodeType === 9 ? root : root.ownerDocument;
	const win = doc.defaultView;
	try {
		let w = win;
		while (w !== w.parent && w.frameElement) {
			const fr = w.frameElement.getBoundingClientRect();
			x -= fr.x + w.frameElement.clientLeft;
			y -= fr.y + w.frameElement.clientTop;
			w = w.parent;
		}
	} catch (e) {}
	const hit = (root.elementFromPoint ? root : doc).elementFromPoint(x, y);
	return hit || null;
}`

const jsActiveElement = `function() {
	const root = this.nodeType === 9 || this.nodeType === 11 ? this : document;
	const el = root.activeElement;
	if (!el || el.tagName === 'BODY' || el.tagName === 'HTML') return null;
	return el;
}`

// jsViewport reports the scope's visual viewport in top-level coordinates,
// so a frame scope's viewport is the frame's box within the page.
const jsViewport = `function() {
	const doc = this.nodeType === 9 ? this : (this.ownerDocument || document);
	const win = doc.defaultView;
	let x = 0, y = 0;
	try {
		let w = win;
		while (w !== w.parent && w.frameElement) {
			const fr = w.frameElement.getBoundingClientRect();
			x += fr.x + w.frameElement.clientLeft;
			y += fr.y + w.frameElement.clientTop;
			w = w.parent;
		}
	} catch (e) {}
	return {x: x, y: y, width: win.innerWidth, height: win.innerHeight};
}`

const jsURL = `function() {
	const doc = this.nodeType === 9 ? this : (this.ownerDocument || document);
	return doc.location ? doc.location.href : '';
}`

const jsTitle = `function() {
	const doc = this.nodeType === 9 ? this : (this.ownerDocument || document);
	return doc.title || '';
}`

const jsParent = `function() { return this.parentElement || null; }`

const jsChildren = `function() { return Array.from(this.children); }`

const jsScrollIntoView = `function() {
	this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	return true;
}`

const jsBlur = `function() { if (this.blur) this.blur(); return true; }`

// jsClick falls back to a synthetic click event for non-HTML elements such
// as SVG icons, which carry handlers but no click() method.
const jsClick = `function() {
	if (typeof this.click === 'function') { this.click(); return true; }
	const win = this.ownerDocument.defaultView;
	this.dispatchEvent(new win.MouseEvent('click', {bubbles: true, cancelable: true, view: win}));
	return true;
}`

// jsSetValue writes through the prototype's native value setter so framework
// wrappers around the value property still observe the change. Selects are
// reported back to the caller, which routes them through option selection.
const jsSetValue = `function(v) {
	if (this.tagName === 'SELECT') return 'select';
	if (this.isContentEditable) { this.textContent = v; return 'editable'; }
	const win = this.ownerDocument.defaultView;
	let proto = null;
	if (this.tagName === 'INPUT') proto = win.HTMLInputElement.prototype;
	else if (this.tagName === 'TEXTAREA') proto = win.HTMLTextAreaElement.prototype;
	const desc = proto ? Object.getOwnPropertyDescriptor(proto, 'value') : null;
	if (desc && desc.set) desc.set.call(this, v); else this.value = v;
	return 'value';
}`

// jsSelectOption matches label, text or value, exact first and
// case-insensitive second, then commits the choice with the input and change
// events a real selection produces.
const jsSelectOption = `function(want) {
	if (this.tagName !== 'SELECT') throw new Error('select option on <' + this.tagName.toLowerCase() + '>');
	const win = this.ownerDocument.defaultView;
	const norm = s => (s || '').replace(/\s+/g, ' ').trim();
	const w = norm(want);
	const lw = w.toLowerCase();
	let match = null;
	for (const opt of this.options) {
		if (norm(opt.label) === w || norm(opt.textContent) === w || norm(opt.value) === w) { match = opt; break; }
	}
	if (!match) {
		for (const opt of this.options) {
			if (norm(opt.label).toLowerCase() === lw || norm(opt.textContent).toLowerCase() === lw || norm(opt.value).toLowerCase() === lw) { match = opt; break; }
		}
	}
	if (!match) return false;
	this.value = match.value;
	this.dispatchEvent(new win.Event('input', {bubbles: true}));
	this.dispatchEvent(new win.Event('change', {bubbles: true}));
	return true;
}`

// jsDispatchEvent fires a simple bubbling event. Input events use the real
// InputEvent interface; composed lets listeners above a shadow boundary see
// the event the way they would a native one.
const jsDispatchEvent = `function(type) {
	const win = this.ownerDocument.defaultView;
	let ev;
	if (type === 'input') ev = new win.InputEvent('input', {bubbles: true, composed: true});
	else ev = new win.Event(type, {bubbles: true, cancelable: true, composed: true});
	this.dispatchEvent(ev);
	return true;
}`
