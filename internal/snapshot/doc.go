// Package snapshot defines the configuration snapshot and its JSON codec.
//
// The export file format is a UTF-8 JSON object:
//
//	{
//	  "schemaVersion": "1.4.0",
//	  "createdAt": 1792390200,
//	  "originSiteIdentifier": "https://example.com",
//	  "reason": "manual",
//	  "domains": {
//	    "customizationValues": {"primary_color": "#112233"},
//	    "widgetData": {"sidebars": {"sidebar-1": ["text-2"]}, "instances": {"text": {"2": {"title": "Hi"}}}},
//	    "menuAssignments": {"header": "42"},
//	    "auxiliaryOptions": {"setup_complete": true}
//	  }
//	}
//
// Every domain is optional; an absent domain is left untouched on import.
// [Decode] reports malformed input with [ErrDecode], [ErrSchema] or
// [ErrShape]; [Encode] reports unserializable values with [ErrEncode].
package snapshot
