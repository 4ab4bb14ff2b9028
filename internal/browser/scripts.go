package browser

import "cvStudio/internal/templates"

const rootSelector = "#" + templates.PreviewRootID

// 以下脚本都是单参数或无参数的函数表达式，结果通过 JSON 字符串返回。

const jsHasRoot = `() => !!document.querySelector('` + rootSelector + `')`

const jsStylesheets = `() => {
  const sheets = [];
  for (const sheet of Array.from(document.styleSheets)) {
    let rules;
    try {
      rules = sheet.cssRules;
    } catch (e) {
      return JSON.stringify({ denied: true, href: sheet.href || '' });
    }
    sheets.push(Array.from(rules).map(r => r.cssText).join('\n'));
  }
  return JSON.stringify({ denied: false, sheets });
}`

const jsOuterHTML = `() => {
  const el = document.querySelector('` + rootSelector + `');
  return el ? el.outerHTML : '';
}`

const jsImages = `() => JSON.stringify({
  origin: location.origin,
  images: Array.from(document.querySelectorAll('` + rootSelector + ` img')).map((img, index) => ({
    index,
    src: img.currentSrc || img.src || ''
  }))
})`

const jsWaitImage = `(index) => new Promise((resolve, reject) => {
  const img = document.querySelectorAll('` + rootSelector + ` img')[index];
  if (!img) return resolve(true);
  if (img.complete) {
    return img.naturalWidth > 0 ? resolve(true) : reject(new Error('image failed to load'));
  }
  img.addEventListener('load', () => resolve(true), { once: true });
  img.addEventListener('error', () => reject(new Error('image failed to load')), { once: true });
})`

const jsHideImages = `(indexes) => {
  const imgs = document.querySelectorAll('` + rootSelector + ` img');
  for (const i of indexes) {
    if (imgs[i]) imgs[i].style.visibility = 'hidden';
  }
  return true;
}`

const jsRootBox = `() => {
  const el = document.querySelector('` + rootSelector + `');
  if (!el) return JSON.stringify(null);
  const r = el.getBoundingClientRect();
  return JSON.stringify({
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    width: Math.ceil(r.width),
    height: Math.ceil(r.height)
  });
}`

const jsFontsReady = `() => {
  if (document && document.fonts && document.fonts.ready) {
    return Promise.race([
      document.fonts.ready.then(() => true),
      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
    ]);
  }
  return true;
}`

type stylesheetResult struct {
	Denied bool     `json:"denied"`
	Href   string   `json:"href"`
	Sheets []string `json:"sheets"`
}

type imagesResult struct {
	Origin string `json:"origin"`
	Images []struct {
		Index int    `json:"index"`
		Src   string `json:"src"`
	} `json:"images"`
}

type box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
