package anki

// templateName is the card template of the sync model.
const templateName = "Card 1"

const templateFront = `<div class="breadcrumb">{{Breadcrumb}}</div>
<div class="text">{{cloze:Text}}</div>`

const templateBack = `<div class="breadcrumb">{{Breadcrumb}}</div>
<div class="text">{{cloze:Text}}</div>
{{#Extra}}<hr><div class="extra">{{Extra}}</div>{{/Extra}}`

const templateCSS = `.card { font-family: sans-serif; font-size: 18px; text-align: left; }
.breadcrumb { font-size: 12px; opacity: 0.7; margin-bottom: 8px; }
.breadcrumb.hidden { display: none; }
.hidden-parent { display: none; }
.children-list { margin: 0; padding-left: 1.2em; }
.children.numbered { list-style-type: decimal; }
.cloze { font-weight: bold; color: #1e6bd6; }`
