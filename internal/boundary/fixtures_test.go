package boundary

// topoFixture holds two adjacent squares sharing arc 0, a point that must be
// dropped, and a geometry with no type.
const topoFixture = `{
  "type": "Topology",
  "transform": {"scale": [0.001, 0.001], "translate": [-80, 37]},
  "objects": {
    "counties": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "arcs": [[0, 1]], "properties": {"GEOID": "51005", "NAME": "Bath County"}},
        {"type": "MultiPolygon", "arcs": [[[-1, 2]]], "id": "51017", "properties": {"name": "Highland County"}},
        {"type": "Point", "coordinates": [0, 0]},
        {"type": null}
      ]
    },
    "state": {"type": "Polygon", "arcs": [[1, 0]]}
  },
  "arcs": [
    [[1000, 0], [0, 1000]],
    [[1000, 1000], [-1000, 0], [0, -1000], [1000, 0]],
    [[1000, 0], [1000, 0], [0, 1000], [-1000, 0]]
  ]
}`

const geojsonFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"COUNTYFP": "005", "NAME": "Bath County"},
     "geometry": {"type": "Polygon", "coordinates": [[[-80, 37], [-79, 37], [-79, 38], [-80, 38], [-80, 37]]]}},
    {"type": "Feature", "properties": {"name": "Road"},
     "geometry": {"type": "LineString", "coordinates": [[-80, 37], [-79, 38]]}},
    {"type": "Feature", "properties": {"FIPS": 51760, "name": "Richmond city"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-77.5, 37.5], [-77.4, 37.5], [-77.4, 37.6], [-77.5, 37.5]]]]}}
  ]
}`
