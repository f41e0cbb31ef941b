package rod

const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
	<a href="/next">Next</a>
</body>
</html>`

	InteractiveHTML = `<!DOCTYPE html>
<html>
<body>
	<input id="q" type="search" />
	<button id="btn">Click Me</button>
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked ' + document.getElementById('q').value;
		});
	</script>
</body>
</html>`
)
